// Package httpclient issues the single GET request behind a transfer.
//
// All transport settings are passed in at construction; nothing here touches
// process-wide state such as http.DefaultTransport.
//
// This package handles:
//   - Header and TLS handshake timeouts that do not cap body streaming
//   - A desktop browser User-Agent, since some origins reject Go's default
//   - Range requests for resuming a staging file, with fallback to a full GET
//   - Mapping HTTP status codes onto the transfer error taxonomy
//
// # Usage
//
//	client := httpclient.NewClient(httpclient.DefaultOptions())
//	resp, err := client.Get(ctx, url, offset)
//	defer resp.Body.Close()
//	// resp.Partial, resp.StartOffset, resp.TotalSize, resp.FinalURL
package httpclient
