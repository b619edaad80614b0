package guirpc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/logger"
)

// DefaultPort is the GUI RPC port a BOINC client listens on.
const DefaultPort = 31416

// Source identifies one pollable BOINC client.
type Source struct {
	Host     string
	Port     int
	Password string // empty means no authentication
	Name     string // display name; defaults to Host
}

// Address returns the host:port string for dialing.
func (s Source) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.withDefaults().Port))
}

func (s Source) withDefaults() Source {
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Name == "" {
		s.Name = s.Host
	}
	return s
}

// Client talks to one BOINC client. Every call opens a fresh connection and
// closes it before returning.
type Client struct {
	source      Source
	hostInfo    HostInfo
	dialer      Dialer
	dialTimeout time.Duration
	timeout     time.Duration
	log         logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDialer routes connections through d, e.g. an SSH tunnel.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithTimeout bounds a whole call: dial, authentication and exchange.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for source. Port defaults to DefaultPort and
// Name to Host.
func NewClient(source Source, opts ...Option) *Client {
	source = source.withDefaults()
	c := &Client{
		source:      source,
		hostInfo:    HostInfo{Name: source.Name},
		dialTimeout: 10 * time.Second,
		timeout:     30 * time.Second,
		log:         logger.NewEnvLogger("[rpc]"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns a copy of the client's source.
func (c *Client) Source() Source {
	return c.source
}

// HostInfo returns the identity stamped on every snapshot from this client.
func (c *Client) HostInfo() HostInfo {
	return c.hostInfo
}

// Call opens a connection, authenticates if needed, runs one exchange and
// closes the connection.
func (c *Client) Call(ctx context.Context, method string, params ...Param) (*Element, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := open(ctx, timeoutDialer{c.dialer, c.dialTimeout}, c.source, c.log)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Exchange(ctx, method, params...)
}

// Poll fetches the client's simple GUI info. Any missing or malformed field
// fails the whole poll.
func (c *Client) Poll(ctx context.Context) (*SimpleGuiInfo, error) {
	start := time.Now()
	reply, err := c.Call(ctx, "get_simple_gui_info")
	if err != nil {
		return nil, err
	}

	info, err := decodeSimpleGuiInfo(c.hostInfo, reply)
	if err != nil {
		return nil, err
	}
	c.log.Debug("polled %s: %d results in %s", c.source.Name, len(info.Results), time.Since(start).Round(time.Millisecond))
	return info, nil
}

func decodeSimpleGuiInfo(host HostInfo, reply *Element) (*SimpleGuiInfo, error) {
	payload := reply.Child("simple_gui_info")
	if payload == nil {
		return nil, protocolError(fmt.Errorf("no <simple_gui_info> in reply"),
			"Reply is missing required field 'simple_gui_info'")
	}

	results := make([]Result, 0, len(payload.Children))
	for i, el := range payload.FindAll("result") {
		r, err := decodeResult(el)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		results = append(results, r)
	}

	return &SimpleGuiInfo{
		Host:     host,
		Projects: []ProjectInfo{},
		Results:  results,
	}, nil
}

// fieldReader extracts typed fields from one element, keeping the first error.
type fieldReader struct {
	el  *Element
	err error
}

func (f *fieldReader) str(path string) string {
	if f.err != nil {
		return ""
	}
	v, err := f.el.Value(path)
	f.err = err
	return v
}

func (f *fieldReader) float(path string) float64 {
	if f.err != nil {
		return 0
	}
	v, err := f.el.Float(path)
	f.err = err
	return v
}

func (f *fieldReader) time(path string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	v, err := f.el.Time(path)
	f.err = err
	return v
}

func (f *fieldReader) code(path string) int {
	if f.err != nil {
		return 0
	}
	v, err := f.el.Int(path)
	f.err = err
	return v
}

func decodeResult(el *Element) (Result, error) {
	f := &fieldReader{el: el}
	r := Result{
		Name:                      f.str("name"),
		WUName:                    f.str("wu_name"),
		Platform:                  f.str("platform"),
		ProjectURL:                f.str("project_url"),
		FinalCPUTime:              f.float("final_cpu_time"),
		FinalElapsedTime:          f.float("final_elapsed_time"),
		EstimatedCPUTimeRemaining: f.float("estimated_cpu_time_remaining"),
		ReceivedTime:              f.time("received_time"),
		ReportDeadline:            f.time("report_deadline"),
	}
	stateCode := f.code("state")
	if f.err != nil {
		return Result{}, f.err
	}
	state, err := ResultStateFromCode(stateCode)
	if err != nil {
		return Result{}, protocolError(err, "Field 'state' has an unknown value")
	}
	r.State = state

	task, err := decodeActiveTask(el)
	if err != nil {
		return Result{}, err
	}
	r.ActiveTask = task
	return r, nil
}

func decodeActiveTask(result *Element) (ActiveTask, error) {
	el := result.Child("active_task")
	if el == nil {
		return ActiveTask{}, protocolError(fmt.Errorf("<result> has no <active_task>"),
			"Reply is missing required field 'active_task'")
	}

	f := &fieldReader{el: el}
	code := f.code("active_task_state")
	t := ActiveTask{
		FractionDone: f.float("fraction_done"),
		ElapsedTime:  f.float("elapsed_time"),
	}
	if f.err != nil {
		return ActiveTask{}, f.err
	}
	state, err := ActiveTaskStateFromCode(code)
	if err != nil {
		return ActiveTask{}, protocolError(err, "Field 'active_task_state' has an unknown value")
	}
	t.ActiveTaskState = state
	return t, nil
}

// timeoutDialer bounds only the dial step of a call.
type timeoutDialer struct {
	dialer  Dialer
	timeout time.Duration
}

func (d timeoutDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := d.dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return dialer.DialContext(ctx, network, address)
}
