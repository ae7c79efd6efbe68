package extractor

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadProxyPool reads a JSON array of {"endpoint": "...", "credentials":
// "..."} objects from path. An empty path is not an error: it yields an
// empty pool, and the ladder simply skips its proxy rungs.
func LoadProxyPool(path string) ([]Proxy, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proxy pool file: %w", err)
	}

	var proxies []Proxy
	if err := json.Unmarshal(data, &proxies); err != nil {
		return nil, fmt.Errorf("parse proxy pool file: %w", err)
	}
	return proxies, nil
}
