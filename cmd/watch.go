package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
	wsmarshaller "github.com/webitel/im-notice-service/internal/handler/marshaller/ws"
	"golang.org/x/sync/errgroup"
)

var errQuit = errors.New("quit")

// watchCmd attaches a terminal renderer to one surface of a running server.
func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Render a surface in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://127.0.0.1:8080", Usage: "Server base URL"},
			&cli.StringFlag{Name: "surface", Required: true, Usage: "Surface id or name"},
		},
		Action: func(c *cli.Context) error {
			api, err := newSurfaceAPI(c.String("url"), c.String("surface"))
			if err != nil {
				return err
			}
			err = runWatch(c.Context, api)
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		},
	}
}

func runWatch(ctx context.Context, api *surfaceAPI) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, api.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("watch: dial: %w", err)
	}
	defer conn.Close()

	if err := ui.Init(); err != nil {
		return fmt.Errorf("watch: terminal: %w", err)
	}
	defer ui.Close()

	view := newWatchView(api.ref)
	view.resize(ui.TerminalDimensions())
	view.render()

	frames := make(chan *wsmarshaller.WSFrame, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watch: read: %w", err)
			}
			ev, err := wsmarshaller.UnmarshallEvent(data)
			if err != nil || ev.Event != wsmarshaller.EventFrame {
				continue
			}
			f, err := ev.DecodeFrame()
			if err != nil {
				continue
			}
			// [LATEST_WINS] ONLY THE NEWEST SNAPSHOT MATTERS TO THE SCREEN
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		defer conn.Close()
		events := ui.PollEvents()
		for {
			select {
			case <-ctx.Done():
				return nil
			case f, ok := <-frames:
				if !ok {
					return nil
				}
				view.apply(f)
			case e := <-events:
				if err := view.handle(ctx, api, e); err != nil {
					return err
				}
			}
			view.render()
		}
	})

	return g.Wait()
}

// watchView owns the widgets; it is only touched from the UI goroutine.
type watchView struct {
	list   *widgets.List
	dialog *widgets.Paragraph
	status *widgets.Paragraph
	frame  *wsmarshaller.WSFrame
}

func newWatchView(ref string) *watchView {
	v := &watchView{
		list:   widgets.NewList(),
		dialog: widgets.NewParagraph(),
		status: widgets.NewParagraph(),
	}
	v.list.Title = "Messages: " + ref
	v.list.SelectedRowStyle = ui.NewStyle(ui.ColorBlack, ui.ColorWhite)
	v.list.WrapText = false
	v.dialog.Title = "Causes"
	v.status.Title = "Keys"
	v.status.Text = "up/down move | enter open | esc close | t ticket | q quit"
	return v
}

func (v *watchView) resize(w, h int) {
	half := w / 2
	v.list.SetRect(0, 0, half, h-3)
	v.dialog.SetRect(half, 0, w, h-3)
	v.status.SetRect(0, h-3, w, h)
}

func (v *watchView) render() {
	ui.Render(v.list, v.dialog, v.status)
}

func (v *watchView) apply(f *wsmarshaller.WSFrame) {
	v.frame = f
	v.list.Rows = formatRows(f.Messages)
	if v.list.SelectedRow >= len(v.list.Rows) {
		v.list.SelectedRow = max(len(v.list.Rows)-1, 0)
	}
	v.dialog.Text = formatDialog(f.Dialog)
}

func (v *watchView) selected() (string, bool) {
	if v.frame == nil || v.list.SelectedRow >= len(v.frame.Messages) {
		return "", false
	}
	return v.frame.Messages[v.list.SelectedRow].UseCaseID, true
}

func (v *watchView) handle(ctx context.Context, api *surfaceAPI, e ui.Event) error {
	var err error
	switch e.ID {
	case "q", "<C-c>":
		return errQuit
	case "<Resize>":
		payload := e.Payload.(ui.Resize)
		v.resize(payload.Width, payload.Height)
		ui.Clear()
	case "<Down>", "j":
		if len(v.list.Rows) > 0 {
			v.list.ScrollDown()
		}
	case "<Up>", "k":
		if len(v.list.Rows) > 0 {
			v.list.ScrollUp()
		}
	case "<Enter>":
		if id, ok := v.selected(); ok {
			err = api.call(ctx, http.MethodPost, "/selection", map[string]string{"use_case_id": id})
		}
	case "<Escape>":
		err = api.call(ctx, http.MethodDelete, "/selection", nil)
	case "t":
		err = api.call(ctx, http.MethodPost, "/selection/ticket", nil)
	}
	if err != nil {
		v.status.Text = "[" + err.Error() + "](fg:red)"
	}
	return nil
}

func formatRows(msgs []wsmarshaller.WSMessage) []string {
	rows := make([]string, 0, len(msgs))
	for _, m := range msgs {
		marker := " "
		if m.HasCause {
			marker = "*"
		}
		rows = append(rows, fmt.Sprintf("[%-5s](fg:%s) %s %s", m.Severity, classColor(m.Class), marker, m.UseCaseID))
	}
	return rows
}

func formatDialog(d wsmarshaller.WSDialog) string {
	if !d.Visible || d.Selected == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", d.Selected.UseCaseID, d.Selected.Severity)
	for i, c := range d.Selected.Causes {
		fmt.Fprintf(&b, "%d. %s", i+1, firstNonEmpty(c.Cause, c.TechnicalText, c.MessageID))
		if c.Remediation != "" {
			fmt.Fprintf(&b, "\n   -> %s", c.Remediation)
		}
		b.WriteString("\n")
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s\n", d.Description)
	}
	switch {
	case d.RequestInProgress:
		b.WriteString("\nSubmitting ticket...")
	case d.TicketError != "":
		fmt.Fprintf(&b, "\n[Ticket failed: %s](fg:red)", d.TicketError)
	}
	return b.String()
}

func classColor(class string) string {
	switch class {
	case "rc-message-info":
		return "blue"
	case "rc-message-warn":
		return "yellow"
	default:
		return "red"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// surfaceAPI issues dialog commands against the REST endpoints of one surface.
type surfaceAPI struct {
	base   *url.URL
	ref    string
	client *http.Client
}

func newSurfaceAPI(rawURL, ref string) (*surfaceAPI, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("watch: url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("watch: unsupported scheme %q", base.Scheme)
	}
	if ref == "" {
		return nil, errors.New("watch: surface is required")
	}
	return &surfaceAPI{base: base, ref: ref, client: &http.Client{Timeout: 5 * time.Second}}, nil
}

func (a *surfaceAPI) endpoint(suffix string) *url.URL {
	u := *a.base
	prefix := strings.TrimRight(a.base.EscapedPath(), "/") + "/v1/surfaces/"
	u.RawPath = prefix + url.PathEscape(a.ref) + suffix
	u.Path = strings.TrimRight(a.base.Path, "/") + "/v1/surfaces/" + a.ref + suffix
	return &u
}

func (a *surfaceAPI) wsURL() string {
	u := a.endpoint("/ws")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (a *surfaceAPI) call(ctx context.Context, method, suffix string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.endpoint(suffix).String(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, suffix, resp.StatusCode, e.Error)
	}
	return nil
}
