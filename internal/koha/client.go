package koha

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client is a thin wrapper over the patron REST API. It does not retry and
// does not refresh its token; an expired token surfaces as a 401 HTTPError.
type Client struct {
	cfg        *config.Config
	httpClient *resty.Client
	log        zerolog.Logger
}

func NewClient(cfg *config.Config, token string) *Client {
	client := resty.New().
		SetBaseURL(cfg.LibraryAPI.BaseURL).
		SetTimeout(cfg.LibraryAPI.Timeout).
		SetHeader("Accept", "application/json").
		SetAuthToken(token)

	if !cfg.LibraryAPI.VerifyTLS {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		cfg:        cfg,
		httpClient: client,
		log:        logger.Get(),
	}
}

// Connect fetches a token and returns a client that uses it.
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	token, err := FetchToken(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, token), nil
}

// FindByUsername queries patrons by exact userid.
func (c *Client) FindByUsername(ctx context.Context, username string) ([]model.RemotePatron, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"userid": username,
			"_match": "exact",
		}).
		Get("/patrons")
	if err != nil {
		return nil, fmt.Errorf("failed to query patrons: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var patrons []model.RemotePatron
	if err := decode(resp.Body(), &patrons); err != nil {
		return nil, fmt.Errorf("failed to decode patron list: %w", err)
	}

	c.log.Debug().Str("username", username).Int("matches", len(patrons)).Msg("Queried patrons by username")

	return patrons, nil
}

func (c *Client) Get(ctx context.Context, patronID string) (model.RemotePatron, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("patron_id", patronID).
		Get("/patrons/{patron_id}")
	if err != nil {
		return nil, fmt.Errorf("failed to get patron: %w", err)
	}
	if err := checkPatronResponse(resp, patronID); err != nil {
		return nil, err
	}

	var patron model.RemotePatron
	if err := decode(resp.Body(), &patron); err != nil {
		return nil, fmt.Errorf("failed to decode patron: %w", err)
	}
	return patron, nil
}

// Update replaces a patron. The caller strips server-managed fields first.
func (c *Client) Update(ctx context.Context, patronID string, patron model.RemotePatron) (model.RemotePatron, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("patron_id", patronID).
		SetHeader("Content-Type", "application/json").
		SetBody(patron).
		Put("/patrons/{patron_id}")
	if err != nil {
		return nil, fmt.Errorf("failed to update patron: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	c.log.Debug().Str("patron_id", patronID).Msg("Patron updated")

	return decodeOptional(resp.Body())
}

func (c *Client) Create(ctx context.Context, patron model.RemotePatron) (model.RemotePatron, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(patron).
		Post("/patrons")
	if err != nil {
		return nil, fmt.Errorf("failed to create patron: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	created, err := decodeOptional(resp.Body())
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("userid", patron.UserID()).Str("patron_id", created.ID()).Msg("Patron created")

	return created, nil
}

func (c *Client) Delete(ctx context.Context, patronID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("patron_id", patronID).
		Delete("/patrons/{patron_id}")
	if err != nil {
		return fmt.Errorf("failed to delete patron: %w", err)
	}
	if err := checkPatronResponse(resp, patronID); err != nil {
		return err
	}

	c.log.Info().Str("patron_id", patronID).Msg("Patron deleted")
	return nil
}

func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return errors.NewHTTPError(resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Body())
}

// checkPatronResponse is checkResponse for single-patron paths, where a 404
// also matches ErrPatronNotFound.
func checkPatronResponse(resp *resty.Response, patronID string) error {
	err := checkResponse(resp)
	if err != nil && resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", errors.ErrPatronNotFound, patronID, err)
	}
	return err
}

// decode keeps numbers as json.Number so integer IDs and amounts are sent
// back unchanged.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeOptional(body []byte) (model.RemotePatron, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.RemotePatron{}, nil
	}
	var patron model.RemotePatron
	if err := decode(body, &patron); err != nil {
		return nil, fmt.Errorf("failed to decode patron: %w", err)
	}
	return patron, nil
}
