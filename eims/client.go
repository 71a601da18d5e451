package eims

import (
	"context"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/sign"
	"github.com/go-faster/errors"
)

type TokenSource interface {
	GetToken(ctx context.Context) (token, encryptionKey string, err error)
	Invalidate(token string)
}

type EnvelopeSigner interface {
	Sign(payload any) (*sign.SignedEnvelope, error)
}

// Client is the signed registry facade. Every call is signed first, so key
// problems surface before anything leaves the process.
type Client struct {
	transport Poster
	tokens    TokenSource
	signer    EnvelopeSigner
	env       Environment
	endpoints Endpoints
}

func NewClient(env Environment, endpoints Endpoints, transport Poster, tokens TokenSource, signer EnvelopeSigner) *Client {
	return &Client{
		transport: transport,
		tokens:    tokens,
		signer:    signer,
		env:       env,
		endpoints: endpoints,
	}
}

// Reply is an accepted registry answer with its decoded body.
type Reply[T any] struct {
	HTTPStatus int
	StatusCode int
	Message    string
	Raw        []byte
	Attempts   int
	Body       T
}

func (c *Client) Register(ctx context.Context, req *api.RegisterRequest) (*Reply[api.RegisterResult], error) {
	reply, err := call[api.RegisterResult](ctx, c, c.endpoints.Register, req, acceptCodes(200))
	if err != nil {
		return nil, err
	}
	if reply.Body.Irn == "" {
		return nil, &api.RejectionError{
			HTTPStatus: reply.HTTPStatus,
			StatusCode: reply.StatusCode,
			Message:    "registration accepted without irn",
			Body:       reply.Raw,
		}
	}
	return reply, nil
}

func (c *Client) Verify(ctx context.Context, irn string) (*Reply[api.VerifyResult], error) {
	return call[api.VerifyResult](ctx, c, c.endpoints.Verify, &api.VerifyRequest{Irn: irn}, acceptCodes(200))
}

func (c *Client) Cancel(ctx context.Context, req *api.CancelRequest) (*Reply[api.CancelResult], error) {
	return call[api.CancelResult](ctx, c, c.endpoints.Cancel, req, acceptCodes(200))
}

func (c *Client) BulkRegister(ctx context.Context, req *api.BulkRegisterRequest) (*Reply[api.BulkRegisterResult], error) {
	reply, err := call[api.BulkRegisterResult](ctx, c, c.endpoints.BulkRegister, req, acceptCodes(200, 202))
	if err != nil {
		return nil, err
	}
	if reply.Body.ConversationID == "" {
		return nil, &api.RejectionError{
			HTTPStatus: reply.HTTPStatus,
			StatusCode: reply.StatusCode,
			Message:    "bulk registration accepted without conversation id",
			Body:       reply.Raw,
		}
	}
	return reply, nil
}

func (c *Client) Receipt(ctx context.Context, req *api.ReceiptRequest) (*Reply[api.ReceiptResult], error) {
	return call[api.ReceiptResult](ctx, c, c.endpoints.Receipt, req, acceptCodes(200, 201))
}

// Withholding the registry answers withholding receipts either with a 200/201
// status code or with a bare SUCCESS/Accepted message.
func (c *Client) Withholding(ctx context.Context, req *api.WithholdingRequest) (*Reply[api.ReceiptResult], error) {
	return call[api.ReceiptResult](ctx, c, c.endpoints.Withholding, req, func(httpStatus int, r *api.Response) bool {
		if r.Accepted(httpStatus, 200, 201) {
			return true
		}
		return httpStatus >= 200 && httpStatus <= 299 && (r.Message == "SUCCESS" || r.Message == "Accepted")
	})
}

type acceptFunc func(httpStatus int, r *api.Response) bool

func acceptCodes(codes ...int) acceptFunc {
	return func(httpStatus int, r *api.Response) bool {
		return r.Accepted(httpStatus, codes...)
	}
}

func call[T any](ctx context.Context, c *Client, path string, payload any, accept acceptFunc) (*Reply[T], error) {

	res, resp, err := c.exchange(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	if !accept(res.StatusCode, resp) {
		return nil, resp.Reject(res.StatusCode, res.Body)
	}

	reply := &Reply[T]{
		HTTPStatus: res.StatusCode,
		StatusCode: int(resp.StatusCode),
		Message:    resp.Message,
		Raw:        res.Body,
		Attempts:   res.Attempts,
	}
	if err := resp.DecodeBody(&reply.Body); err != nil {
		return nil, &api.RejectionError{
			HTTPStatus: res.StatusCode,
			StatusCode: int(resp.StatusCode),
			Message:    err.Error(),
			Body:       res.Body,
		}
	}
	return reply, nil
}

// exchange signs payload and posts the envelope with a bearer token. A 401
// invalidates the token and the call is repeated once with a fresh one.
// Registry answers carried by a 4xx are returned as responses, so the caller
// classifies them as rejections with the raw body kept.
func (c *Client) exchange(ctx context.Context, path string, payload any) (*api.HTTPResult, *api.Response, error) {

	env, err := c.signer.Sign(payload)
	if err != nil {
		return nil, nil, err
	}
	body := env.Bytes()
	url := c.env.URL(path)

	for retried := false; ; retried = true {

		token, _, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, nil, err
		}

		res, err := c.transport.Post(ctx, url, map[string]string{"Authorization": "Bearer " + token}, body)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				c.tokens.Invalidate(token)
				if !retried {
					logger.Debugf("registry answered 401 for %s, logging in again", path)
					continue
				}
				return nil, nil, &api.AuthError{Cause: err}
			}

			var re *api.RequestError
			if res != nil && errors.As(err, &re) {
				if resp, derr := api.DecodeResponse(res.Body); derr == nil && (resp.Message != "" || resp.StatusCode != 0) {
					return res, resp, nil
				}
			}
			return nil, nil, err
		}

		resp, err := api.DecodeResponse(res.Body)
		if err != nil {
			logger.Warnf("%s answered a non JSON body: %v", path, err)
		}
		return res, resp, nil
	}
}
