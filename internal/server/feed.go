package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tartampluch/onefam/internal/config"
)

// feedVersion identifies the last feed body served for a family.
type feedVersion struct {
	etag         string
	lastModified string
}

// version returns the cache validators for data. Last-Modified only moves
// when the content hash changes. Empty feeds are not remembered, so unknown
// family IDs never grow the cache.
func (s *APIServer) version(familyID string, data []byte) *feedVersion {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	if string(data) == config.StubVCalendar {
		s.feeds.Delete(familyID)
		return &feedVersion{etag: etag, lastModified: time.Now().UTC().Format(http.TimeFormat)}
	}

	if prev, ok := s.feeds.Load(familyID); ok {
		if v := prev.(*feedVersion); v.etag == etag {
			return v
		}
	}

	v := &feedVersion{
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	}
	s.feeds.Store(familyID, v)

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
	return v
}

// handleFeed serves the family's iCalendar feed with conditional GET support.
func (s *APIServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, config.ParamFamilyID)

	data, err := s.engine.Feed(r.Context(), familyID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	v := s.version(familyID, data)

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderContentDisposit, config.ICSFileName)
	w.Header().Set(config.HeaderETag, v.etag)
	w.Header().Set(config.HeaderLastModified, v.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		if match == v.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		clientTime, err1 := time.Parse(http.TimeFormat, since)
		serverTime, err2 := time.Parse(http.TimeFormat, v.lastModified)
		if err1 == nil && err2 == nil && !serverTime.After(clientTime) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if r.Method != http.MethodGet {
		return
	}
	if _, err := w.Write(data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}
