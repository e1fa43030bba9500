// Package canister is a client for the NFT canister.
//
// Calls are sent as CBOR documents over HTTP to a gateway exposing the
// canister's methods under /api/canister/{canisterID}/{method}. Every answer
// is a Result carrying either an ok payload or a declared canister Error.
// Failures to reach the canister (network errors, non-2xx status codes,
// undecodable answers) are returned as *TransportError instead.
package canister

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ORIGYN-SA/mintgo/identity"
	"github.com/ORIGYN-SA/mintgo/version"
)

const (
	mediaType = "application/cbor"

	// maxErrorBody bounds how much of an unexpected response we keep.
	maxErrorBody = 512
)

// ErrNoPrincipal is returned by operations that act on behalf of the caller
// when the client is using the anonymous identity.
var ErrNoPrincipal = errors.New("no principal")

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("canister: CBOR decoder initialization failed: " + err.Error())
	}
}

// Client manages communication with one canister.
type Client struct {
	client *http.Client
	logger logrus.FieldLogger

	// Base URL of the gateway.
	BaseURL *url.URL

	// Canister targeted by the calls.
	CanisterID string

	// Identity of the caller.
	Identity identity.Identity

	// User agent used when communicating with the gateway.
	UserAgent string

	NFT        NFTService
	Collection CollectionService
	Balance    BalanceService
	Market     MarketService
	Canister   CanisterService
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithIdentity sets the identity the calls are made on behalf of.
func WithIdentity(id identity.Identity) ClientOption {
	return func(c *Client) {
		c.Identity = id
	}
}

// WithUserAgent overrides the default user agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// New returns a new canister client. If httpClient is nil,
// http.DefaultClient is used.
func New(httpClient *http.Client, host, canisterID string, opts ...ClientOption) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if canisterID == "" {
		return nil, errors.New("canister id is empty")
	}
	baseURL, err := url.Parse(strings.TrimSuffix(host, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "invalid host")
	}
	c := &Client{
		client:     httpClient,
		logger:     logrus.New(),
		BaseURL:    baseURL,
		CanisterID: canisterID,
		Identity:   identity.Anonymous(),
		UserAgent:  version.AppVersion(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "canister")
	c.setServices()
	return c, nil
}

func (c *Client) setServices() {
	c.NFT = &NFTServiceOp{client: c}
	c.Collection = &CollectionServiceOp{client: c}
	c.Balance = &BalanceServiceOp{client: c}
	c.Market = &MarketServiceOp{client: c}
	c.Canister = &CanisterServiceOp{client: c}
}

// ForCanister returns a copy of the client targeting another canister.
func (c *Client) ForCanister(canisterID string) *Client {
	if canisterID == "" || canisterID == c.CanisterID {
		return c
	}
	cc := *c
	cc.CanisterID = canisterID
	cc.setServices()
	return &cc
}

// Principal of the caller.
func (c *Client) Principal() string {
	return c.Identity.Principal()
}

// principal returns the caller principal or ErrNoPrincipal when the client is
// anonymous.
func (c *Client) principal() (string, error) {
	p := c.Principal()
	if p == "" || p == identity.AnonymousPrincipal {
		return "", ErrNoPrincipal
	}
	return p, nil
}

type callEnvelope struct {
	Sender string      `cbor:"sender"`
	Method string      `cbor:"method"`
	Arg    interface{} `cbor:"arg"`
}

// Call invokes a canister method. A nil error only means that the call
// reached the canister; the returned Result may still hold a declared error.
func (c *Client) Call(ctx context.Context, method string, arg interface{}) (*Result, error) {
	body, err := cbor.Marshal(&callEnvelope{
		Sender: c.Principal(),
		Method: method,
		Arg:    arg,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode %s arguments", method)
	}

	rel := &url.URL{Path: "api/canister/" + url.PathEscape(c.CanisterID) + "/" + method}
	u := c.BaseURL.ResolveReference(rel)
	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("User-Agent", c.UserAgent)

	c.logger.WithFields(logrus.Fields{"method": method, "bytes": len(body)}).Debug("Calling canister.")

	resp, err := c.client.Do(req)
	if err != nil {
		// Prefer the context's error, it's more informative.
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		blob, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Method: method,
			Err:    fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(blob))),
		}
	}

	result := &Result{}
	if err := decMode.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, &TransportError{Method: method, Err: errors.Wrap(err, "cannot decode answer")}
	}
	return result, nil
}

// call is like Call but folds a declared error into the returned error and
// decodes the ok payload into v when v is not nil.
func (c *Client) call(ctx context.Context, method string, arg interface{}, v interface{}) error {
	result, err := c.Call(ctx, method, arg)
	if err != nil {
		return err
	}
	if result.Err != nil {
		return result.Err
	}
	if v == nil {
		return nil
	}
	return result.Decode(v)
}
