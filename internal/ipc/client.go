package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// serviceName is the RPC receiver name registered by the server.
const serviceName = "FieldSync"

// dialTimeout bounds how long the CLI waits before falling back to the
// queue file.
const dialTimeout = 2 * time.Second

// Client is a connection to a running daemon.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close hangs up. The rpc client owns the connection.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

func invoke[Resp any](c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.rpc.Call(serviceName+"."+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Start resumes background syncing.
func (c *Client) Start() (*StartResponse, error) {
	return invoke[StartResponse](c, "Start", StartRequest{})
}

// Stop pauses background syncing. The daemon process keeps running.
func (c *Client) Stop() (*StopResponse, error) {
	return invoke[StopResponse](c, "Stop", StopRequest{})
}

func (c *Client) Status() (*StatusResponse, error) {
	return invoke[StatusResponse](c, "Status", StatusRequest{})
}

// SyncNow runs a pass in the daemon and waits for its report.
func (c *Client) SyncNow() (*SyncNowResponse, error) {
	return invoke[SyncNowResponse](c, "SyncNow", SyncNowRequest{})
}

// QueueList returns queue items in FIFO order, optionally filtered by status.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	return invoke[QueueListResponse](c, "QueueList", QueueListRequest{Statuses: statuses})
}

func (c *Client) QueueDeadLetters() (*QueueListResponse, error) {
	return invoke[QueueListResponse](c, "QueueDeadLetters", QueueDeadLettersRequest{})
}

func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	return invoke[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

func (c *Client) QueueRemove(ids []string) (*QueueRemoveResponse, error) {
	return invoke[QueueRemoveResponse](c, "QueueRemove", QueueRemoveRequest{IDs: ids})
}

// QueueClear drops every item, synced or not.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	return invoke[QueueClearResponse](c, "QueueClear", QueueClearRequest{})
}

// QueueRequeue moves dead letters back to pending with a fresh attempt count.
func (c *Client) QueueRequeue(ids []string) (*QueueRequeueResponse, error) {
	return invoke[QueueRequeueResponse](c, "QueueRequeue", QueueRequeueRequest{IDs: ids})
}
