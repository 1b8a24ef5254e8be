package server

import (
	"net/http"
	"os"
	"path"
	"strings"
)

// Cache-Control values by asset class.
const (
	cacheNoCache = "no-cache"
	cacheShort   = "public, max-age=3600"
	cacheLong    = "public, max-age=86400"
)

var longCacheExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
}

// cacheControlFor picks the Cache-Control header for a request path.
// Directory paths serve index.html and are treated like HTML.
func cacheControlFor(p string) string {
	if strings.HasSuffix(p, "/") {
		return cacheNoCache
	}
	ext := strings.ToLower(path.Ext(p))
	switch {
	case ext == "" || ext == ".html" || ext == ".htm":
		return cacheNoCache
	case ext == ".js" || ext == ".css":
		return cacheShort
	case longCacheExts[ext]:
		return cacheLong
	default:
		return cacheNoCache
	}
}

// publicFS hides dotfiles and directories that have no index.html.
type publicFS struct {
	http.FileSystem
}

func (fs publicFS) Open(name string) (http.File, error) {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return nil, os.ErrNotExist
		}
	}
	f, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		index, err := fs.FileSystem.Open(path.Join(name, "index.html"))
		if err != nil {
			_ = f.Close()
			return nil, os.ErrNotExist
		}
		_ = index.Close()
	}
	return f, nil
}

func staticHandler(dir string) http.Handler {
	fs := http.FileServer(publicFS{http.Dir(dir)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheControlFor(r.URL.Path))
		fs.ServeHTTP(w, r)
	})
}
