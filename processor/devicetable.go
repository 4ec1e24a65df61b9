package processor

import (
	"encoding/json"
	"os"

	"github.com/smsgwd/smsgwd/pkg/errors"
)

var errDeviceTable = errors.New("failed to load device table")

type deviceTableEntry struct {
	Token      string   `json:"token"`
	Device     int      `json:"device"`
	SMSCPrefix bool     `json:"smsc_prefix"`
	Name       string   `json:"name"`
	Recipients []string `json:"recipients"`
}

// LoadDeviceTable reads the static token→device map from a JSON file: an
// array of {token, device, smsc_prefix, name, recipients} entries, built
// once at process start per the "global configuration" design note.
func LoadDeviceTable(path string) (DeviceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errDeviceTable, err)
	}
	defer f.Close()

	var entries []deviceTableEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, errors.Wrap(errDeviceTable, err)
	}

	table := make(DeviceTable, len(entries))
	for _, e := range entries {
		table[e.Token] = Device{
			ID:         e.Device,
			SMSCPrefix: e.SMSCPrefix,
			Name:       e.Name,
			Recipients: e.Recipients,
		}
	}
	return table, nil
}
