package server

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/xtxerr/saga/internal/constants"
	"github.com/xtxerr/saga/internal/consolidation"
	"github.com/xtxerr/saga/internal/traffic"
)

// pollResponse is the envelope of the event and sensor routes. The latest
// id appears twice: the inner copy is kept for older web pages.
type pollResponse struct {
	Host      string   `json:"host"`
	Proxy     string   `json:"proxy"`
	Apps      []string `json:"apps"`
	Timestamp int64    `json:"timestamp"`
	Latest    int64    `json:"latest"`
	Saga      pollBody `json:"saga"`
}

type pollBody struct {
	Invert    bool                `json:"invert"`
	Latest    int64               `json:"latest"`
	Truncated bool                `json:"truncated,omitempty"`
	Events    jsoniter.RawMessage `json:"events,omitempty"`
	Sensor    jsoniter.RawMessage `json:"sensor,omitempty"`
}

func (s *Server) envelope(latest int64) pollResponse {
	return pollResponse{
		Host:      s.cfg.Host,
		Proxy:     s.cfg.Portal,
		Apps:      []string{constants.AppName},
		Timestamp: s.now().Unix(),
		Latest:    latest,
		Saga:      pollBody{Invert: true, Latest: latest},
	}
}

type trafficResponse struct {
	Host      string      `json:"host"`
	Timestamp int64       `json:"timestamp"`
	Saga      trafficBody `json:"saga"`
}

type trafficBody struct {
	Traffic []traffic.Item `json:"traffic"`
}

type statusResponse struct {
	Host      string     `json:"host"`
	Timestamp int64      `json:"timestamp"`
	Saga      statusBody `json:"saga"`
}

type statusBody struct {
	Events  consolidation.Stats `json:"events"`
	Sensors consolidation.Stats `json:"sensor"`
	Storage storageStatus       `json:"storage"`
}

type storageStatus struct {
	Root         string `json:"root"`
	FilesOpened  int64  `json:"files_opened"`
	RowsWritten  int64  `json:"rows_written"`
	BytesWritten int64  `json:"bytes_written"`
	Errors       int64  `json:"errors"`
}
