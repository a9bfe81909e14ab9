package connector

import (
	"context"
	"fmt"

	"github.com/Sternrassler/api-connector/pkg/decode"
	"github.com/Sternrassler/api-connector/pkg/pagination"
	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/transport"
	"github.com/rs/zerolog"
)

// requestFetcher fetches one page of a table: build, send, check, decode.
type requestFetcher struct {
	table     *spec.TableSpec
	authz     request.Authorizer
	creds     request.Credentials
	transport transport.Transport
	decoder   decode.Decoder
	logger    zerolog.Logger
}

var _ pagination.PageFetcher = (*requestFetcher)(nil)

func (f *requestFetcher) FetchPage(ctx context.Context, page pagination.Page) (*table.Table, error) {
	d, err := request.Build(f.table, f.authz, f.creds, page.Vars)
	if err != nil {
		return nil, err
	}

	resp, err := f.transport.Send(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	if !resp.OK() {
		return nil, &transport.RequestError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
			URL:        d.URL,
		}
	}

	rows, err := f.decoder.Decode(resp.Body, f.table.Response)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Int("page", page.Index).
		Int("status", resp.StatusCode).
		Int("rows", rows.Len()).
		Msg("Decoded page")

	return rows, nil
}
