package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultPDS = "https://bsky.social"

// expiredTokenCode is the XRPC error code returned when the access token has
// aged out and a refresh is needed.
const expiredTokenCode = "ExpiredToken"

// APIError is a structured XRPC error response from the PDS.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client is a Bluesky/AT Protocol API client for session management, record
// creation, blob upload, and the lookups the post composer needs.
type Client struct {
	pds         string
	httpClient  *http.Client
	logger      *slog.Logger
	sessionFile string

	// populated after Login or Restore
	session *Session
}

// NewClient creates a new Bluesky API client. If pds is empty, it defaults
// to https://bsky.social. sessionFile may be empty to disable session
// persistence.
func NewClient(pds, sessionFile string, logger *slog.Logger) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		sessionFile: sessionFile,
	}
}

// Login authenticates with the PDS and stores the session token. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var sess Session
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", body, &sess, ""); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.session = &sess
	return c.persistSession()
}

// Restore loads a previously saved session from the session file.
func (c *Client) Restore() error {
	if c.sessionFile == "" {
		return ErrNoSession
	}
	sess, err := LoadSession(c.sessionFile)
	if err != nil {
		return err
	}
	c.session = sess
	return nil
}

// Refresh exchanges the refresh token for a new session pair.
func (c *Client) Refresh(ctx context.Context) error {
	if c.session == nil {
		return ErrNoSession
	}

	var sess Session
	if err := c.post(ctx, "/xrpc/com.atproto.server.refreshSession", nil, &sess, c.session.RefreshJwt); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	c.session = &sess
	return c.persistSession()
}

// Logout revokes the session on the PDS and removes the session file.
func (c *Client) Logout(ctx context.Context) error {
	if c.session == nil {
		return ErrNoSession
	}

	if err := c.post(ctx, "/xrpc/com.atproto.server.deleteSession", nil, nil, c.session.RefreshJwt); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	c.session = nil
	if c.sessionFile != "" {
		return RemoveSession(c.sessionFile)
	}
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login or
// Restore.
func (c *Client) DID() string {
	if c.session == nil {
		return ""
	}
	return c.session.DID
}

// Handle returns the authenticated user's handle. Only valid after Login or
// Restore.
func (c *Client) Handle() string {
	if c.session == nil {
		return ""
	}
	return c.session.Handle
}

// ResolveHandle resolves an account handle to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	query := url.Values{"handle": {handle}}

	var resp struct {
		DID string `json:"did"`
	}
	err := c.authed(ctx, func(token string) error {
		return c.get(ctx, "/xrpc/com.atproto.identity.resolveHandle", query, &resp, token)
	})
	if err != nil {
		return "", fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	return resp.DID, nil
}

// ResolveProfile resolves a handle to the profile fields the composer needs.
func (c *Client) ResolveProfile(ctx context.Context, handle string) (*Profile, error) {
	did, err := c.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return &Profile{DID: did}, nil
}

// ResolvePost fetches an existing post by its author handle and record key,
// returning its strong reference and, when the post is itself a reply, the
// root of its thread.
func (c *Client) ResolvePost(ctx context.Context, handle, rkey string) (*PostRef, error) {
	did, err := c.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"repo":       {did},
		"collection": {TypePost},
		"rkey":       {rkey},
	}

	var resp struct {
		URI   string `json:"uri"`
		CID   string `json:"cid"`
		Value struct {
			Reply *ReplyRefs `json:"reply"`
		} `json:"value"`
	}
	err = c.authed(ctx, func(token string) error {
		return c.get(ctx, "/xrpc/com.atproto.repo.getRecord", query, &resp, token)
	})
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", handle, rkey, err)
	}

	ref := &PostRef{URI: resp.URI, CID: resp.CID}
	if resp.Value.Reply != nil {
		root := resp.Value.Reply.Root
		ref.ReplyRoot = &root
	}
	return ref, nil
}

// CreatePost creates the post record in the authenticated user's repo via
// com.atproto.repo.createRecord and returns its strong reference.
func (c *Client) CreatePost(ctx context.Context, record *PostRecord) (*StrongRef, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}

	body := createRecordRequest{
		Repo:       c.session.DID,
		Collection: TypePost,
		Record:     record,
	}

	var resp StrongRef
	err := c.authed(ctx, func(token string) error {
		return c.post(ctx, "/xrpc/com.atproto.repo.createRecord", body, &resp, token)
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &resp, nil
}

// UploadBlob uploads raw image bytes as a blob and returns a reference.
// The blob will be deleted if not referenced in a record within a time window.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}

	var resp struct {
		Blob BlobRef `json:"blob"`
	}
	err := c.authed(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", mimeType)
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return &resp.Blob, nil
}

// authed runs fn with the current access token. If the PDS rejects the call
// with ExpiredToken, the session is refreshed once and fn is resubmitted.
func (c *Client) authed(ctx context.Context, fn func(token string) error) error {
	if c.session == nil {
		return ErrNoSession
	}

	err := fn(c.session.AccessJwt)
	if !isExpiredToken(err) {
		return err
	}

	c.logger.Warn("access token expired, refreshing session")
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		return fmt.Errorf("refresh after expired token: %w", refreshErr)
	}
	return fn(c.session.AccessJwt)
}

func isExpiredToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == expiredTokenCode
}

func (c *Client) persistSession() error {
	if c.sessionFile == "" {
		return nil
	}
	return SaveSession(c.sessionFile, c.session)
}

func (c *Client) post(ctx context.Context, path string, body, result any, token string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypes["json"])
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, result)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pds+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Code == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}
