package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Scan submits one token for processing.
func (c *Client) Scan(tok, source string) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Crossdock.Scan", ScanRequest{Token: tok, Source: source}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModeSet switches the operation mode.
func (c *Client) ModeSet(mode string) (*ModeSetResponse, error) {
	var resp ModeSetResponse
	if err := c.client.Call("Crossdock.ModeSet", ModeSetRequest{Mode: mode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ManifestClear drops the active manifest binding.
func (c *Client) ManifestClear() (*ManifestClearResponse, error) {
	var resp ManifestClearResponse
	if err := c.client.Call("Crossdock.ManifestClear", ManifestClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionReset clears manifest context and session history.
func (c *Client) SessionReset() (*SessionResetResponse, error) {
	var resp SessionResetResponse
	if err := c.client.Call("Crossdock.SessionReset", SessionResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves daemon and session status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Crossdock.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches session outcomes, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Crossdock.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches session counters.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Crossdock.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns offline queue entries filtered by status.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Crossdock.QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry retries failed entries. Empty ids means all.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.client.Call("Crossdock.QueueRetry", QueueRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearFailed removes failed entries.
func (c *Client) QueueClearFailed() (*QueueClearFailedResponse, error) {
	var resp QueueClearFailedResponse
	if err := c.client.Call("Crossdock.QueueClearFailed", QueueClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes every queued entry.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Crossdock.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkSet marks backend connectivity up or down.
func (c *Client) LinkSet(online bool) (*LinkSetResponse, error) {
	var resp LinkSetResponse
	if err := c.client.Call("Crossdock.LinkSet", LinkSetRequest{Online: online}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Crossdock.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop shuts the daemon down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Crossdock.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
