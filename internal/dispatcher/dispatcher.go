package dispatcher

import (
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/apiproxy/internal/enumpage"
	"github.com/dreamware/apiproxy/internal/intid"
	"github.com/dreamware/apiproxy/internal/proxymode"
	"github.com/dreamware/apiproxy/internal/routespec"
	"github.com/dreamware/apiproxy/internal/serverscfg"
)

// unknownPathMessage is returned verbatim whenever no server can be
// resolved for a request, including while no config has loaded yet.
const unknownPathMessage = "The request can not be forwarded to an Web API server.\n"

// globalRandomIDSpan is the width of the random id range used for
// load-balancing global (non-sharded) requests. Kept at 10^9 for
// compatibility with the original sharding function's outputs, per the
// preserved open-question note.
const globalRandomIDSpan = 1_000_000_000

// ConfigProvider returns the current routing plane snapshot, or nil if
// no valid configuration has ever loaded.
type ConfigProvider func() *serverscfg.ServersConfig

// Handler classifies and forwards requests for one process-wide Mode.
type Handler struct {
	mode   *proxymode.Mode
	config ConfigProvider
	client *http.Client
}

// New builds a dispatcher Handler. proxyTimeout bounds how long a
// single upstream round trip may take.
func New(mode *proxymode.Mode, config ConfigProvider, proxyTimeout time.Duration) *Handler {
	return &Handler{
		mode:   mode,
		config: config,
		client: &http.Client{
			Timeout: proxyTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// exchange carries the per-request metadata the source implementation
// passed via sentinel properties: whether this response must be
// self-handled by the enumerate rewriter, and the upstream/version it
// was resolved against at classification time.
type exchange struct {
	configVersion string
	forwardURL    routespec.ServerURL
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config()
	if cfg == nil {
		respondBadGateway(w, unknownPathMessage)
		return
	}

	u, ok := h.findServerURL(cfg, r.URL.Path)
	if !ok {
		respondBadGateway(w, unknownPathMessage)
		return
	}

	var exch *exchange
	if h.mode.HasEnumerate() && h.mode.EnumeratePathRegexp.MatchString(r.URL.Path) {
		exch = &exchange{configVersion: cfg.Version(), forwardURL: u}
	}

	h.forward(w, r, u, cfg, exch)
}

// findServerURL implements the classifier: sharded paths resolve by
// parsing their id(s), global paths resolve by picking a
// load-balancing random id, anything else is unknown.
func (h *Handler) findServerURL(cfg *serverscfg.ServersConfig, path string) (routespec.ServerURL, bool) {
	if m := h.mode.ShardedPathRegexp.FindStringSubmatch(path); m != nil {
		ids := make([]int64, h.mode.NumIDs)
		for i := 0; i < h.mode.NumIDs; i++ {
			id, err := intid.ParseI64(m[i+1])
			if err != nil {
				return "", false
			}
			ids[i] = id
		}
		var sk uint32
		if h.mode.NumIDs == 2 {
			sk = intid.ShardKey(ids[0], &ids[1])
		} else {
			sk = intid.ShardKey(ids[0], nil)
		}
		return cfg.MatchShardingKey(sk), true
	}

	if h.mode.HasGlobal() && h.mode.GlobalPathRegexp.MatchString(path) {
		id := rand.Int63n(globalRandomIDSpan)
		return cfg.MatchShardingKey(intid.ShardKey(id, nil)), true
	}

	return "", false
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, u routespec.ServerURL, cfg *serverscfg.ServersConfig, exch *exchange) {
	target := strings.TrimSuffix(string(u), "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		respondBadGateway(w, err.Error())
		return
	}
	copyHeaders(req.Header, r.Header)
	req.ContentLength = r.ContentLength

	resp, err := h.client.Do(req)
	if err != nil {
		respondBadGateway(w, err.Error())
		return
	}
	defer resp.Body.Close()

	if exch == nil {
		copyHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
		return
	}

	body, truncated, err := readUpTo(resp.Body, enumpage.MaxBufferedBody)
	if err != nil {
		respondBadGateway(w, err.Error())
		return
	}

	if truncated {
		log.Printf("dispatcher: enumerate response for %s exceeded %d bytes, forwarding unrewritten", r.URL.Path, enumpage.MaxBufferedBody)
		copyHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		io.Copy(w, resp.Body)
		return
	}

	out, rewritten := enumpage.Rewrite(body, resp.Header.Get("Content-Type"), resp.StatusCode, r.URL.String(), exch.configVersion, exch.forwardURL, cfg, h.mode)
	copyHeaders(w.Header(), resp.Header)
	if rewritten {
		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(out)
}

// readUpTo reads at most limit+1 bytes from r. truncated reports
// whether the stream had more than limit bytes remaining; if so, data
// holds only the first limit+1 bytes and the caller is responsible for
// draining the rest of r itself.
func readUpTo(r io.Reader, limit int) (data []byte, truncated bool, err error) {
	buf := make([]byte, limit+1)
	n, readErr := io.ReadFull(r, buf)
	switch {
	case readErr == nil:
		return buf, true, nil
	case readErr == io.ErrUnexpectedEOF || readErr == io.EOF:
		return buf[:n], false, nil
	default:
		return nil, false, readErr
	}
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
