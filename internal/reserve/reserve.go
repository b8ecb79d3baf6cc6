package reserve

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/apiproxy/internal/intid"
	"github.com/dreamware/apiproxy/internal/proxymode"
	"github.com/dreamware/apiproxy/internal/routespec"
	"github.com/dreamware/apiproxy/internal/serverscfg"
)

// maxAttempts bounds the retry-on-conflict loop.
const maxAttempts = 100

// ConfigProvider returns the current routing plane snapshot, or nil if
// no valid configuration has ever loaded.
type ConfigProvider func() *serverscfg.ServersConfig

// Handler implements the reserve-random endpoint for one process-wide
// Mode. It is only ever registered when the mode has a reserve path.
type Handler struct {
	mode   *proxymode.Mode
	config ConfigProvider
	client *http.Client
}

// New builds a reserve Handler. proxyTimeout bounds a single reserve
// attempt's round trip, matching the dispatcher's upstream timeout.
func New(mode *proxymode.Mode, config ConfigProvider, proxyTimeout time.Duration) *Handler {
	return &Handler{
		mode:   mode,
		config: config,
		client: &http.Client{
			Timeout: proxyTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondBadGateway(w, err.Error())
		return
	}

	cfg := h.config()
	if cfg == nil {
		respondBadGateway(w, "The request can not be forwarded to an Web API server.\n")
		return
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := drawID(h.mode.MinID, h.mode.MaxID)
		if err != nil {
			respondBadGateway(w, err.Error())
			return
		}

		path := h.mode.BuildReservePath(intid.U2Dec(intid.I2U(id)))
		u := cfg.MatchShardingKey(intid.ShardKey(id, nil))

		resp, ok, err := h.attempt(r, u, path, body)
		if err != nil {
			break // transport failure: abort the loop immediately, per spec
		}
		if !ok {
			continue // 409 Conflict: id already reserved, draw again
		}

		relay(w, resp)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "All %s attempts have failed.\n", h.mode.ReservationType)
}

// attempt POSTs one reservation draw. ok is false only on a 409
// Conflict, meaning the caller should draw again; a non-nil error
// means the request never got a response at all (a transport
// failure), which the caller treats as aborting the whole retry loop.
func (h *Handler) attempt(r *http.Request, u routespec.ServerURL, path string, body []byte) (*http.Response, bool, error) {
	target := strings.TrimSuffix(u.String(), "/") + path

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	copyHeaders(req.Header, r.Header)
	req.ContentLength = int64(len(body))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, false, err
	}

	if resp.StatusCode == http.StatusConflict {
		resp.Body.Close()
		return nil, false, nil
	}
	return resp, true, nil
}

// drawID picks a uniformly random i64 in [min, max] using
// cryptographic randomness: 8 random bytes read big-endian as an
// unsigned 64-bit value, reduced modulo span+1 via math/big to avoid
// overflow when span is itself close to 2^64-1, then offset by min.
func drawID(min, max int64) (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("reserve: reading random bytes: %w", err)
	}

	var r big.Int
	r.SetBytes(buf[:])

	span := intid.I2U(max) - intid.I2U(min)
	spanPlusOne := new(big.Int).Add(new(big.Int).SetUint64(span), big.NewInt(1))

	r.Mod(&r, spanPlusOne)

	return intid.U2I(intid.I2U(min) + r.Uint64()), nil
}

func relay(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func respondBadGateway(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusBadGateway)
	io.WriteString(w, msg)
}
