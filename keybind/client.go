package keybind

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

// Client talks to a running driver's control socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// Send submits one request and reads its response.
func (c *Client) Send(req Request) (Response, error) {
	var resp Response
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return resp, errors.Wrap(err, "driver not running or socket unavailable")
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, errors.Wrap(err, "encode request")
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		return resp, errors.Wrap(err, "send request")
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return resp, errors.Wrap(err, "no response from driver")
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, errors.Wrap(err, "invalid response from driver")
	}
	return resp, nil
}

func (c *Client) GetBindings() (map[keydial.ActionID]keydial.Action, error) {
	resp, err := c.Send(Request{Command: CmdGetBindings})
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, errors.New(resp.Message)
	}
	return resp.Bindings, nil
}

func (c *Client) SetBinding(actionID string, action keydial.Action) error {
	resp, err := c.Send(Request{Command: CmdSetBinding, ActionID: actionID, Action: &action})
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return errors.New(resp.Message)
	}
	return nil
}

func (c *Client) RemoveBinding(actionID string) error {
	resp, err := c.Send(Request{Command: CmdRemoveBinding, ActionID: actionID})
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return errors.New(resp.Message)
	}
	return nil
}

func (c *Client) ListActions() ([]keydial.ActionID, error) {
	resp, err := c.Send(Request{Command: CmdListActions})
	if err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, errors.New(resp.Message)
	}
	return resp.Actions, nil
}
