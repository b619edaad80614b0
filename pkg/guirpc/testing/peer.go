// Package testing provides an in-process GUI RPC peer for tests.
//
// The peer listens on a loopback port, decodes each request frame with
// guirpc.DecodeRequest and answers with whatever the Handler returns.
package testing

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/rileyhilliard/boincwatch/pkg/guirpc"
)

// Request is one decoded request as seen by the peer.
type Request struct {
	ConnID int
	Method string
	Params []guirpc.Param
}

// Param returns the value of the named parameter and whether it was present.
func (r Request) Param(name string) (string, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Reply is the peer's answer to one request.
type Reply struct {
	Body   string // wrapped in <boinc_gui_rpc_reply> and terminated
	Raw    []byte // sent verbatim when non-nil
	Hangup bool   // close the connection without answering
}

// Body returns a reply whose payload is body.
func Body(body string) Reply { return Reply{Body: body} }

// Raw returns a reply sent byte-for-byte.
func Raw(b []byte) Reply { return Reply{Raw: b} }

// Hangup returns a reply that drops the connection.
func Hangup() Reply { return Reply{Hangup: true} }

// ErrorReply is the peer-reported error form.
func ErrorReply(message string) Reply {
	return Body("<error>" + message + "</error>")
}

// UnauthorizedReply is the auth rejection marker.
func UnauthorizedReply() Reply {
	return Body("<unauthorized/>")
}

// Handler answers requests.
type Handler func(req Request) Reply

// Peer is a fake BOINC client.
type Peer struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	requests []Request
	conns    map[net.Conn]struct{}
	opened   int
	closed   int
	wg       sync.WaitGroup
}

// StartPeer listens on 127.0.0.1 with an ephemeral port.
func StartPeer(handler Handler) (*Peer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	p := &Peer{ln: ln, handler: handler, conns: make(map[net.Conn]struct{})}
	p.wg.Add(1)
	go p.serve()
	return p, nil
}

// Source returns a guirpc.Source pointing at the peer.
func (p *Peer) Source(password string) guirpc.Source {
	addr := p.ln.Addr().(*net.TCPAddr)
	return guirpc.Source{Host: "127.0.0.1", Port: addr.Port, Password: password}
}

// Addr returns the listen address.
func (p *Peer) Addr() string {
	return p.ln.Addr().String()
}

// Requests returns every request received so far.
func (p *Peer) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Methods returns the method names received so far, in order.
func (p *Peer) Methods() []string {
	var out []string
	for _, r := range p.Requests() {
		out = append(out, r.Method)
	}
	return out
}

// Connections reports how many connections were accepted and how many have
// since been closed by either side.
func (p *Peer) Connections() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

// Close stops the listener, drops open connections and waits for
// connection handlers to exit.
func (p *Peer) Close() error {
	err := p.ln.Close()
	p.mu.Lock()
	for c := range p.conns {
		c.Close()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return err
}

func (p *Peer) serve() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		p.opened++
		id := p.opened
		p.conns[conn] = struct{}{}
		p.mu.Unlock()

		p.wg.Add(1)
		go p.handle(id, conn)
	}
}

func (p *Peer) handle(id int, conn net.Conn) {
	defer p.wg.Done()
	defer func() {
		conn.Close()
		p.mu.Lock()
		delete(p.conns, conn)
		p.closed++
		p.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	for {
		frame, err := guirpc.ReadFrame(r)
		if err != nil {
			return
		}
		method, params, err := guirpc.DecodeRequest(frame)
		if err != nil {
			return
		}

		req := Request{ConnID: id, Method: method, Params: params}
		p.mu.Lock()
		p.requests = append(p.requests, req)
		p.mu.Unlock()

		reply := p.handler(req)
		switch {
		case reply.Hangup:
			return
		case reply.Raw != nil:
			if _, err := conn.Write(reply.Raw); err != nil {
				return
			}
		default:
			if _, err := conn.Write([]byte(Envelope(reply.Body))); err != nil {
				return
			}
		}
	}
}

// Envelope wraps body in a terminated reply document.
func Envelope(body string) string {
	return "<" + guirpc.ReplyTag + ">\n" + body + "\n</" + guirpc.ReplyTag + ">\n\x03"
}

// AuthHandler enforces the auth1/auth2 challenge with the given password and
// nonce before delegating to next. Unauthenticated calls get <unauthorized/>.
func AuthHandler(password, nonce string, next Handler) Handler {
	var mu sync.Mutex
	authed := make(map[int]bool)
	return func(req Request) Reply {
		switch req.Method {
		case "auth1":
			return Body("<nonce>" + nonce + "</nonce>")
		case "auth2":
			hash, _ := req.Param("nonce_hash")
			if hash != guirpc.NonceHash(nonce, password) {
				return UnauthorizedReply()
			}
			mu.Lock()
			authed[req.ConnID] = true
			mu.Unlock()
			return Body("<authorized/>")
		}
		mu.Lock()
		ok := authed[req.ConnID]
		mu.Unlock()
		if !ok {
			return UnauthorizedReply()
		}
		return next(req)
	}
}

// ResultXML describes one <result> for SimpleGuiInfo.
type ResultXML struct {
	Name           string
	State          int
	TaskState      int
	FractionDone   float64
	ElapsedTime    float64
	ReceivedTime   float64
	ReportDeadline float64
	OmitActiveTask bool
	Omit           string // a field name to leave out
}

// SampleResult returns a fully populated ResultXML named name.
func SampleResult(name string) ResultXML {
	return ResultXML{
		Name:           name,
		State:          2,
		TaskState:      1,
		FractionDone:   0.25,
		ElapsedTime:    3600.5,
		ReceivedTime:   1700000000,
		ReportDeadline: 1700600000.5,
	}
}

// String renders the result element.
func (r ResultXML) String() string {
	fields := []struct{ name, value string }{
		{"name", r.Name},
		{"wu_name", r.Name + "_wu"},
		{"platform", "x86_64-pc-linux-gnu"},
		{"project_url", "https://einsteinathome.org/"},
		{"final_cpu_time", "0.000000"},
		{"final_elapsed_time", "0.000000"},
		{"estimated_cpu_time_remaining", "10800.000000"},
		{"state", fmt.Sprint(r.State)},
		{"received_time", fmt.Sprintf("%f", r.ReceivedTime)},
		{"report_deadline", fmt.Sprintf("%f", r.ReportDeadline)},
	}

	var b strings.Builder
	b.WriteString("<result>\n")
	for _, f := range fields {
		if f.name == r.Omit {
			continue
		}
		fmt.Fprintf(&b, "    <%s>%s</%s>\n", f.name, f.value, f.name)
	}
	if !r.OmitActiveTask {
		b.WriteString("    <active_task>\n")
		if r.Omit != "active_task_state" {
			fmt.Fprintf(&b, "        <active_task_state>%d</active_task_state>\n", r.TaskState)
		}
		if r.Omit != "fraction_done" {
			fmt.Fprintf(&b, "        <fraction_done>%f</fraction_done>\n", r.FractionDone)
		}
		if r.Omit != "elapsed_time" {
			fmt.Fprintf(&b, "        <elapsed_time>%f</elapsed_time>\n", r.ElapsedTime)
		}
		b.WriteString("    </active_task>\n")
	}
	b.WriteString("</result>")
	return b.String()
}

// SimpleGuiInfo renders a get_simple_gui_info payload.
func SimpleGuiInfo(results ...ResultXML) string {
	var b strings.Builder
	b.WriteString("<simple_gui_info>\n")
	for _, r := range results {
		b.WriteString(r.String())
		b.WriteString("\n")
	}
	b.WriteString("</simple_gui_info>")
	return b.String()
}

// StaticHandler answers get_simple_gui_info with the given results and any
// other method with an error reply.
func StaticHandler(results ...ResultXML) Handler {
	return func(req Request) Reply {
		if req.Method == "get_simple_gui_info" {
			return Body(SimpleGuiInfo(results...))
		}
		return ErrorReply("unrecognized op: " + req.Method)
	}
}
