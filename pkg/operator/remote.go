package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// RemoteClusterOperator talks to a provisioning API over HTTP/JSON.
//
//	POST   /clusters                 {name, ports}  -> {address}
//	DELETE /clusters/{name}
//	GET    /clusters/{name}/status                  -> {status}
//	GET    /clusters/{name}/ports                   -> {ports}
//
// 409 on create maps to ErrClusterNameTaken; 5xx and transport errors map to
// ErrTransient so the orchestrator retries on the next tick.
type RemoteClusterOperator struct {
	base   string
	client *http.Client
	logger zerolog.Logger
}

// NewRemoteClusterOperator creates a cluster operator against baseURL
func NewRemoteClusterOperator(baseURL string, logger zerolog.Logger) *RemoteClusterOperator {
	return &RemoteClusterOperator{
		base:   baseURL,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (o *RemoteClusterOperator) CreateCluster(ctx context.Context, name string, ports []int) (string, error) {
	body := struct {
		Name  string `json:"name"`
		Ports []int  `json:"ports,omitempty"`
	}{Name: name, Ports: ports}

	var resp struct {
		Address string `json:"address"`
	}
	status, err := o.do(ctx, http.MethodPost, "/clusters", body, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusConflict:
		return "", fmt.Errorf("create %s: %w", name, ErrClusterNameTaken)
	case status >= 500:
		return "", fmt.Errorf("create %s: status %d: %w", name, status, ErrTransient)
	case status >= 400:
		return "", fmt.Errorf("create %s: unexpected status %d", name, status)
	}
	return resp.Address, nil
}

func (o *RemoteClusterOperator) DeleteCluster(ctx context.Context, name string) error {
	status, err := o.do(ctx, http.MethodDelete, "/clusters/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return err
	}
	// Deleting an unknown cluster is a no-op
	if status >= 500 {
		return fmt.Errorf("delete %s: status %d: %w", name, status, ErrTransient)
	}
	if status >= 400 && status != http.StatusNotFound {
		return fmt.Errorf("delete %s: unexpected status %d", name, status)
	}
	return nil
}

func (o *RemoteClusterOperator) GetClusterStatus(ctx context.Context, name string) (ClusterStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	status, err := o.do(ctx, http.MethodGet, "/clusters/"+url.PathEscape(name)+"/status", nil, &resp)
	if err != nil {
		return ClusterStatusUnknown, err
	}
	switch {
	case status == http.StatusNotFound:
		return ClusterStatusNotFound, nil
	case status >= 500:
		return ClusterStatusUnknown, fmt.Errorf("status %s: status %d: %w", name, status, ErrTransient)
	case status >= 400:
		return ClusterStatusUnknown, fmt.Errorf("status %s: unexpected status %d", name, status)
	}

	switch ClusterStatus(resp.Status) {
	case ClusterStatusCreating, ClusterStatusReady, ClusterStatusCreateFailed,
		ClusterStatusDeleting, ClusterStatusDeleteFailed, ClusterStatusNotFound:
		return ClusterStatus(resp.Status), nil
	}
	o.logger.Warn().Str("cluster", name).Str("status", resp.Status).Msg("unrecognized provisioning status")
	return ClusterStatusUnknown, nil
}

func (o *RemoteClusterOperator) GetClusterPorts(ctx context.Context, name string) ([]int, error) {
	var resp struct {
		Ports []int `json:"ports"`
	}
	status, err := o.do(ctx, http.MethodGet, "/clusters/"+url.PathEscape(name)+"/ports", nil, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("ports %s: status %d: %w", name, status, ErrTransient)
	}
	if status >= 400 {
		return nil, fmt.Errorf("ports %s: unexpected status %d", name, status)
	}
	return resp.Ports, nil
}

func (o *RemoteClusterOperator) do(ctx context.Context, method, path string, body, out any) (int, error) {
	return doJSON(ctx, o.client, method, o.base+path, body, out)
}

// RemoteApplicationOperator talks to an application management API over
// HTTP/JSON. The cluster's management endpoint rides in the request body so
// one operator instance serves the whole pool.
type RemoteApplicationOperator struct {
	base   string
	client *http.Client
	logger zerolog.Logger
}

// NewRemoteApplicationOperator creates an application operator against baseURL
func NewRemoteApplicationOperator(baseURL string, logger zerolog.Logger) *RemoteApplicationOperator {
	return &RemoteApplicationOperator{
		base:   baseURL,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (o *RemoteApplicationOperator) CopyPackageToImageStore(ctx context.Context, cluster, localPath, typeName, typeVersion string) (string, error) {
	body := struct {
		Cluster     string `json:"cluster"`
		LocalPath   string `json:"localPath"`
		TypeName    string `json:"typeName"`
		TypeVersion string `json:"typeVersion"`
	}{cluster, localPath, typeName, typeVersion}

	var resp struct {
		ImageStorePath string `json:"imageStorePath"`
	}
	status, err := doJSON(ctx, o.client, http.MethodPost, o.base+"/applications/copy", body, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusServiceUnavailable:
		return "", fmt.Errorf("copy %s to %s: %w", typeName, cluster, ErrImageStoreNotReady)
	case status >= 500:
		return "", fmt.Errorf("copy %s to %s: status %d: %w", typeName, cluster, status, ErrTransient)
	case status >= 400:
		return "", fmt.Errorf("copy %s to %s: unexpected status %d", typeName, cluster, status)
	}
	return resp.ImageStorePath, nil
}

func (o *RemoteApplicationOperator) RegisterApplication(ctx context.Context, cluster, imageStorePath string) error {
	body := struct {
		Cluster        string `json:"cluster"`
		ImageStorePath string `json:"imageStorePath"`
	}{cluster, imageStorePath}

	status, err := doJSON(ctx, o.client, http.MethodPost, o.base+"/applications/register", body, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		return fmt.Errorf("register %s on %s: %w", imageStorePath, cluster, ErrApplicationAlreadyRegistered)
	case status >= 500:
		return fmt.Errorf("register %s on %s: status %d: %w", imageStorePath, cluster, status, ErrTransient)
	case status >= 400:
		return fmt.Errorf("register %s on %s: unexpected status %d", imageStorePath, cluster, status)
	}
	return nil
}

func (o *RemoteApplicationOperator) CreateApplication(ctx context.Context, cluster, instanceName, typeName, typeVersion string) error {
	body := struct {
		Cluster      string `json:"cluster"`
		InstanceName string `json:"instanceName"`
		TypeName     string `json:"typeName"`
		TypeVersion  string `json:"typeVersion"`
	}{cluster, instanceName, typeName, typeVersion}

	status, err := doJSON(ctx, o.client, http.MethodPost, o.base+"/applications", body, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		return fmt.Errorf("create %s on %s: %w", instanceName, cluster, ErrApplicationAlreadyExists)
	case status >= 500:
		return fmt.Errorf("create %s on %s: status %d: %w", instanceName, cluster, status, ErrTransient)
	case status >= 400:
		return fmt.Errorf("create %s on %s: unexpected status %d", instanceName, cluster, status)
	}
	return nil
}

func (o *RemoteApplicationOperator) ApplicationExists(ctx context.Context, cluster, instanceName string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	path := fmt.Sprintf("%s/applications/%s?cluster=%s", o.base, url.PathEscape(instanceName), url.QueryEscape(cluster))
	status, err := doJSON(ctx, o.client, http.MethodGet, path, nil, &resp)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= 500 {
		return false, fmt.Errorf("exists %s on %s: status %d: %w", instanceName, cluster, status, ErrTransient)
	}
	if status >= 400 {
		return false, fmt.Errorf("exists %s on %s: unexpected status %d", instanceName, cluster, status)
	}
	return resp.Exists, nil
}

func (o *RemoteApplicationOperator) GetApplicationCount(ctx context.Context, cluster string) (int, error) {
	return o.count(ctx, cluster, "/counts/applications")
}

func (o *RemoteApplicationOperator) GetServiceCount(ctx context.Context, cluster string) (int, error) {
	return o.count(ctx, cluster, "/counts/services")
}

func (o *RemoteApplicationOperator) count(ctx context.Context, cluster, path string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	full := fmt.Sprintf("%s%s?cluster=%s", o.base, path, url.QueryEscape(cluster))
	status, err := doJSON(ctx, o.client, http.MethodGet, full, nil, &resp)
	if err != nil {
		return 0, err
	}
	if status >= 500 {
		return 0, fmt.Errorf("count %s on %s: status %d: %w", path, cluster, status, ErrTransient)
	}
	if status >= 400 {
		return 0, fmt.Errorf("count %s on %s: unexpected status %d", path, cluster, status)
	}
	return resp.Count, nil
}

func (o *RemoteApplicationOperator) GetServiceEndpoint(ctx context.Context, cluster, serviceURI, endpointName string) (string, error) {
	var resp struct {
		Endpoint string `json:"endpoint"`
	}
	full := fmt.Sprintf("%s/endpoints?cluster=%s&service=%s&name=%s",
		o.base, url.QueryEscape(cluster), url.QueryEscape(serviceURI), url.QueryEscape(endpointName))
	status, err := doJSON(ctx, o.client, http.MethodGet, full, nil, &resp)
	if err != nil {
		return "", err
	}
	if status >= 500 {
		return "", fmt.Errorf("endpoint %s on %s: status %d: %w", serviceURI, cluster, status, ErrTransient)
	}
	if status >= 400 {
		return "", fmt.Errorf("endpoint %s on %s: unexpected status %d", serviceURI, cluster, status)
	}
	return resp.Endpoint, nil
}

// doJSON issues one request and decodes a JSON response when out is non-nil
// and the status is 2xx. Transport failures map to ErrTransient.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%s %s: %v: %w", method, url, err, ErrTransient)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: decode response: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}
