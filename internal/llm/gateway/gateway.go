// Package gateway executes one generation request against one backend.
// Streaming is preferred; when the stream path fails outright the gateway
// retries exactly once with a buffered call before surfacing the failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/provider"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

// Gateway runs generation calls over a shared HTTP client. A per-call proxy
// derives a routed clone of the client; the gateway keeps no state between
// calls.
type Gateway struct {
	client *httpclient.HttpClient
}

func New(client *httpclient.HttpClient) *Gateway {
	return &Gateway{client: client}
}

// Generate executes req against prov. The deadline of ctx bounds the whole
// call including the buffered fallback. An empty or all-whitespace final
// text is reported as llm.ErrEmptyResponse, never returned as output.
func (g *Gateway) Generate(ctx context.Context, prov provider.Provider, req *llm.Request, handle string, proxyURL *url.URL) (*llm.Response, error) {
	client := g.client
	if proxyURL != nil {
		client = client.WithProxy(proxyURL)
	}

	resp, streamErr := g.generateStream(ctx, client, prov, req, handle)
	if streamErr != nil {
		// An unsupported model fails identically on the buffered path,
		// and an expired context leaves no room for it.
		if errors.Is(streamErr, provider.ErrUnsupportedModel) || ctx.Err() != nil {
			return nil, streamErr
		}

		log.Warn(ctx, "stream generation failed, retrying buffered",
			log.String("provider", prov.Name()),
			log.Cause(streamErr))

		var err error

		resp, err = g.generateBuffered(ctx, client, prov, req, handle)
		if err != nil {
			return nil, err
		}
	}

	if resp.Empty() {
		return nil, llm.ErrEmptyResponse
	}

	return resp, nil
}

// generateStream accumulates stream chunks into one response. Frames that
// carry nothing usable are skipped; the terminal marker ends accumulation.
func (g *Gateway) generateStream(ctx context.Context, client *httpclient.HttpClient, prov provider.Provider, req *llm.Request, handle string) (*llm.Response, error) {
	streamReq := req.WithStream(true)

	httpReq, err := prov.BuildRequest(ctx, client, streamReq, handle)
	if err != nil {
		return nil, err
	}

	stream, err := client.DoStream(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn(ctx, "failed to close generation stream", log.Cause(err))
		}
	}()

	var text strings.Builder

	for stream.Next() {
		event := stream.Current()
		if provider.IsDone(event.Data) {
			break
		}

		chunk, ok := prov.ParseChunk(streamReq, event.Data)
		if !ok {
			continue
		}

		text.WriteString(chunk.Text())
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read generation stream: %w", err)
	}

	final := text.String()
	if finisher, ok := prov.(provider.Finisher); ok {
		final = finisher.FinishStream(final)
	}

	return llm.TextResponse(req.Model, prov.Name(), final), nil
}

func (g *Gateway) generateBuffered(ctx context.Context, client *httpclient.HttpClient, prov provider.Provider, req *llm.Request, handle string) (*llm.Response, error) {
	bufReq := req.WithStream(false)

	httpReq, err := prov.BuildRequest(ctx, client, bufReq, handle)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	return prov.ParseResponse(bufReq, resp.Body)
}
