package guirpc

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	// RequestTag is the root element of every request document.
	RequestTag = "boinc_gui_rpc_request"
	// ReplyTag is the root element of every reply document.
	ReplyTag = "boinc_gui_rpc_reply"
	// EndOfMessage terminates every frame in both directions.
	EndOfMessage byte = 0x03
	// MaxFrameSize bounds a single frame. A peer that sends more without a
	// terminator is treated as broken.
	MaxFrameSize = 16 << 20
)

// Param is one request parameter: a child element of the method element.
type Param struct {
	Name  string
	Value string
}

// NewParam builds a Param, converting v to its canonical string form.
func NewParam(name string, v any) Param {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	return Param{Name: name, Value: s}
}

var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Encode builds a request frame for method with the given parameters,
// terminated by EndOfMessage.
func Encode(method string, params ...Param) ([]byte, error) {
	if !xmlName.MatchString(method) {
		return nil, protocolError(fmt.Errorf("invalid method name %q", method), "Can't encode request")
	}

	var b bytes.Buffer
	b.WriteString("<" + RequestTag + ">")
	if len(params) == 0 {
		b.WriteString("<" + method + "/>")
	} else {
		b.WriteString("<" + method + ">")
		for _, p := range params {
			if !xmlName.MatchString(p.Name) {
				return nil, protocolError(fmt.Errorf("invalid parameter name %q", p.Name), "Can't encode request")
			}
			b.WriteString("<" + p.Name + ">")
			if err := xml.EscapeText(&b, []byte(p.Value)); err != nil {
				return nil, protocolError(err, "Can't encode request")
			}
			b.WriteString("</" + p.Name + ">")
		}
		b.WriteString("</" + method + ">")
	}
	b.WriteString("</" + RequestTag + ">")
	b.WriteByte(EndOfMessage)
	return b.Bytes(), nil
}

// Decode parses a reply frame into an element tree. The trailing
// EndOfMessage byte is optional. The root must be ReplyTag.
func Decode(frame []byte) (*Element, error) {
	root, err := parseDocument(frame)
	if err != nil {
		return nil, err
	}
	if root.Name != ReplyTag {
		return nil, protocolError(fmt.Errorf("root element <%s>", root.Name),
			fmt.Sprintf("Expected a <%s> document", ReplyTag))
	}
	return root, nil
}

// Classify inspects the first child of a reply envelope. An <unauthorized>
// marker yields an ErrUnauthorized error, an <error> element a *ResponseError.
// Any other reply is returned unchanged as a successful payload.
func Classify(root *Element) (*Element, error) {
	if root == nil || len(root.Children) == 0 {
		return nil, protocolError(fmt.Errorf("empty <%s>", ReplyTag), "Reply carried no payload")
	}
	switch first := root.Children[0]; first.Name {
	case "unauthorized":
		return nil, unauthorizedError()
	case "error":
		return nil, responseError(first.Text)
	}
	return root, nil
}

// DecodeRequest parses a request frame back into its method and parameters.
// It is the peer side of Encode.
func DecodeRequest(frame []byte) (string, []Param, error) {
	root, err := parseDocument(frame)
	if err != nil {
		return "", nil, err
	}
	if root.Name != RequestTag {
		return "", nil, protocolError(fmt.Errorf("root element <%s>", root.Name),
			fmt.Sprintf("Expected a <%s> document", RequestTag))
	}
	if len(root.Children) != 1 {
		return "", nil, protocolError(fmt.Errorf("%d method elements", len(root.Children)),
			"Request must contain exactly one method")
	}
	m := root.Children[0]
	params := make([]Param, 0, len(m.Children))
	for _, c := range m.Children {
		params = append(params, Param{Name: c.Name, Value: c.Text})
	}
	return m.Name, params, nil
}

// ReadFrame reads one frame, up to and including EndOfMessage, from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadSlice(EndOfMessage)
		frame = append(frame, chunk...)
		if len(frame) > MaxFrameSize {
			return nil, protocolError(fmt.Errorf("frame exceeds %d bytes", MaxFrameSize), "Reply too large")
		}
		switch err {
		case nil:
			return frame, nil
		case bufio.ErrBufferFull:
			continue
		default:
			return nil, err
		}
	}
}

func parseDocument(frame []byte) (*Element, error) {
	data := bytes.TrimRight(frame, "\x03 \t\r\n")
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return nil, protocolError(io.ErrUnexpectedEOF, "Empty frame")
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var root *Element
	var stack []*Element
	var text []*strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, protocolError(err, "Malformed XML in frame")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, protocolError(fmt.Errorf("second root <%s>", el.Name), "Malformed XML in frame")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			el := stack[len(stack)-1]
			el.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, protocolError(io.ErrUnexpectedEOF, "Frame holds no XML element")
	}
	return root, nil
}

// charsetReader lets replies that declare a legacy single-byte encoding be
// parsed. encoding/xml handles UTF-8 on its own.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "us-ascii", "ascii":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}
