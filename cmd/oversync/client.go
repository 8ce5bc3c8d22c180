package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/overspend1/oversync/pkg/types"
)

// apiResponse mirrors pkg/controlapi's response envelope. The CLI is a
// thin HTTP client over a running 'oversync serve' process, the same
// way the teacher's pkg/client is a thin gRPC client over a running
// manager.
type apiResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Status   *types.SyncStatus `json:"status,omitempty"`
	Ticket   string            `json:"ticket,omitempty"`
	Activity []types.FileEntry `json:"activity,omitempty"`
}

type apiClient struct {
	addr string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{addr: addr, http: &http.Client{Timeout: 15 * time.Second}}
}

func (c *apiClient) get(path string) (apiResponse, error) {
	resp, err := c.http.Get("http://" + c.addr + path)
	if err != nil {
		return apiResponse{}, fmt.Errorf("contact oversync serve at %s: %w", c.addr, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (c *apiClient) post(path string, body any) (apiResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.http.Post("http://"+c.addr+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return apiResponse{}, fmt.Errorf("contact oversync serve at %s: %w", c.addr, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (apiResponse, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("read response: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return apiResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if !decoded.Ok {
		return decoded, fmt.Errorf("%s", decoded.Error)
	}
	return decoded, nil
}
