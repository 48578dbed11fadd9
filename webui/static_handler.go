package webui

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"aesthetisim/webui/static"
)

// StaticAssetHandler serves the embedded dashboard assets with MIME type
// detection and cache headers.
type StaticAssetHandler struct {
	fs          fs.FS
	prefix      string
	indexFile   string
	enableCache bool
	cacheMaxAge int
}

// StaticAssetConfig configures the StaticAssetHandler.
type StaticAssetConfig struct {
	// Prefix is the URL prefix assets are mounted under.
	Prefix string

	// IndexFile is served for directory requests.
	IndexFile string

	// EnableCache turns on public cache headers.
	EnableCache bool

	// CacheMaxAge is the max-age in seconds when caching is enabled.
	CacheMaxAge int
}

// DefaultStaticAssetConfig returns the production defaults.
func DefaultStaticAssetConfig() StaticAssetConfig {
	return StaticAssetConfig{
		Prefix:      "/static",
		IndexFile:   "index.html",
		EnableCache: true,
		CacheMaxAge: 3600,
	}
}

// NewStaticAssetHandler creates a handler over the embedded assets.
func NewStaticAssetHandler(cfg StaticAssetConfig) *StaticAssetHandler {
	return NewStaticAssetHandlerWithFS(static.FS(), cfg)
}

// NewStaticAssetHandlerWithFS creates a handler over a custom
// filesystem, used in tests.
func NewStaticAssetHandlerWithFS(fsys fs.FS, cfg StaticAssetConfig) *StaticAssetHandler {
	if cfg.Prefix == "" {
		cfg.Prefix = "/static"
	}
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.html"
	}
	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = 3600
	}

	return &StaticAssetHandler{
		fs:          fsys,
		prefix:      cfg.Prefix,
		indexFile:   cfg.IndexFile,
		enableCache: cfg.EnableCache,
		cacheMaxAge: cfg.CacheMaxAge,
	}
}

// ServeHTTP implements http.Handler.
func (h *StaticAssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := strings.TrimPrefix(r.URL.Path, h.prefix)
	urlPath = strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if urlPath == "" || urlPath == "." {
		urlPath = h.indexFile
	}

	data, err := fs.ReadFile(h.fs, urlPath)
	if err != nil {
		// Directory request falls through to its index file.
		indexPath := path.Join(urlPath, h.indexFile)
		if data, err = fs.ReadFile(h.fs, indexPath); err != nil {
			http.NotFound(w, r)
			return
		}
		urlPath = indexPath
	}

	w.Header().Set("Content-Type", contentTypeFor(urlPath))
	if h.enableCache {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.cacheMaxAge))
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}

// RegisterRoutes mounts the handler on mux under its prefix.
func (h *StaticAssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(h.prefix+"/", h)
}

// ServeDashboard serves the dashboard index page directly, used for the
// authenticated root route.
func (h *StaticAssetHandler) ServeDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(h.fs, h.indexFile)
		if err != nil {
			http.Error(w, "Dashboard not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// contentTypeFor resolves a MIME type from the file extension with
// fallbacks for types the host registry may not know.
func contentTypeFor(filePath string) string {
	ext := filepath.Ext(filePath)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json", ".map":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}
