// Package catalog loads store lists from local files or URLs in JSON, YAML,
// CSV, or XLSX form.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/storesync/internal/model"
)

// Format is a catalog file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// maxDownload caps remote catalog bodies.
const maxDownload = 64 << 20

// DetectFormat picks a format from the file extension of src.
func DetectFormat(src string) (Format, error) {
	p := src
	if u, err := url.Parse(src); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("catalog: unknown format for %q", src)
	}
}

// Loader reads catalogs.
type Loader struct {
	client *http.Client
}

// NewLoader returns a Loader whose remote fetches time out after timeout.
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Loader{client: &http.Client{Timeout: timeout}}
}

// Load reads src, which is a file path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, src string) ([]model.Store, error) {
	format, err := DetectFormat(src)
	if err != nil {
		return nil, err
	}

	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	stores, err := Parse(data, format)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", src)
	}

	zap.L().Info("catalog: loaded",
		zap.String("source", src),
		zap.String("format", string(format)),
		zap.Int("stores", len(stores)),
	)
	return stores, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", src)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: build request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: download %s", src)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("catalog: download %s: status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read body")
	}
	return data, nil
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) ([]model.Store, error) {
	var stores []model.Store
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &stores); err != nil {
			return nil, eris.Wrap(err, "json: decode stores")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &stores); err != nil {
			return nil, eris.Wrap(err, "yaml: decode stores")
		}
	case FormatCSV:
		rows, err := readCSV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return fromRows(rows)
	case FormatXLSX:
		rows, err := readXLSX(data)
		if err != nil {
			return nil, err
		}
		return fromRows(rows)
	default:
		return nil, eris.Errorf("catalog: unsupported format %q", format)
	}
	return clean(stores), nil
}

// clean trims fields and drops empty records.
func clean(stores []model.Store) []model.Store {
	out := stores[:0]
	for _, s := range stores {
		s.Brand = strings.TrimSpace(s.Brand)
		s.Address = strings.TrimSpace(s.Address)
		s.City = strings.TrimSpace(s.City)
		if s.Brand == "" && s.Address == "" && s.City == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// WriteJSON writes stores as an indented JSON array.
func WriteJSON(w io.Writer, stores []model.Store) error {
	if stores == nil {
		stores = []model.Store{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(stores), "catalog: encode json")
}
