package quartzy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gallowaylab/plasmiddb/internal/metrics"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// Custom field names used by the lab's plasmid inventory.
const (
	fieldCatalog     = "pKG#"
	fieldName        = "Plasmid"
	fieldSpecies     = "Species"
	fieldResistances = "Resistance markers"
	fieldTypes       = "Plasmid type"
	fieldDateStored  = "Date stored"
	fieldDetails     = "Technical details"
)

type pagination struct {
	Pagination struct {
		Page struct {
			Last int `json:"last"`
		} `json:"page"`
	} `json:"pagination"`
}

type relation struct {
	Data *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

type itemsPage struct {
	Data []item     `json:"data"`
	Meta pagination `json:"meta"`
}

type item struct {
	ID         string `json:"id"`
	Attributes struct {
		Name          string                     `json:"name"`
		CatalogNumber *string                    `json:"catalog_number"`
		Vendor        namedValue                 `json:"vendor"`
		Attachments   []namedValue               `json:"attachments"`
		CustomFields  map[string]json.RawMessage `json:"custom_fields"`
	} `json:"attributes"`
	Relationships struct {
		Owner relation `json:"owner"`
	} `json:"relationships"`
}

// namedValue decodes either a bare string or an object with a name.
type namedValue string

func (n *namedValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = namedValue(s)
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name == "" {
		obj.Name = obj.Filename
	}
	*n = namedValue(obj.Name)
	return nil
}

// FetchPlasmids pages through every item of the group, sorted by descending
// name, pausing between pages.
func (c *Client) FetchPlasmids(ctx context.Context) ([]plasmid.RawPlasmid, error) {
	var out []plasmid.RawPlasmid
	path := fmt.Sprintf("/groups/%s/items", c.opts.GroupID)

	for page, last := 1, 1; page <= last; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		var body itemsPage
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(c.opts.PageSize),
				"sort":  "-name",
			}).
			SetResult(&body).
			Get(path)
		if err != nil {
			return nil, fmt.Errorf("quartzy: items page %d: %w", page, err)
		}
		metrics.ObserveUpstream("items", res.StatusCode())
		if res.IsError() {
			return nil, fmt.Errorf("quartzy: items page %d: %s", page, res.Status())
		}
		last = body.Meta.Pagination.Page.Last

		for _, it := range body.Data {
			raw, err := it.toRaw()
			if err != nil {
				return nil, fmt.Errorf("quartzy: item %s: %w", it.ID, err)
			}
			out = append(out, raw)
		}
		c.logger.Debug("quartzy: items page",
			slog.Int("page", page),
			slog.Int("last", last),
			slog.Int("items", len(body.Data)))
	}
	return out, nil
}

func (it item) toRaw() (plasmid.RawPlasmid, error) {
	fields := it.Attributes.CustomFields
	catalog, err := intField(fields, fieldCatalog)
	if err != nil {
		return plasmid.RawPlasmid{}, err
	}
	raw := plasmid.RawPlasmid{
		Catalog:          catalog,
		ItemName:         it.Attributes.Name,
		Name:             stringField(fields, fieldName),
		Species:          stringField(fields, fieldSpecies),
		Resistances:      listField(fields, fieldResistances),
		Types:            listField(fields, fieldTypes),
		StockDate:        stringField(fields, fieldDateStored),
		TechnicalDetails: stringField(fields, fieldDetails),
		Vendor:           string(it.Attributes.Vendor),
	}
	if it.Attributes.CatalogNumber != nil {
		raw.AltName = *it.Attributes.CatalogNumber
	}
	for _, a := range it.Attributes.Attachments {
		raw.Attachments = append(raw.Attachments, string(a))
	}
	if d := it.Relationships.Owner.Data; d != nil {
		raw.OwnerID = d.ID
	}
	return raw, nil
}

// intField reads a numeric custom field sent either as a number or a string.
func intField(fields map[string]json.RawMessage, name string) (int, error) {
	data, ok := fields[name]
	if !ok || string(data) == "null" {
		return 0, fmt.Errorf("missing %q", name)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
		return v, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

// stringField reads a text custom field. A value of another JSON type is
// kept as its raw JSON text so later checks report what upstream sent.
func stringField(fields map[string]json.RawMessage, name string) string {
	data, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ""
	}
	return raw
}

// listField reads a multi-select custom field; a plain string becomes a
// one-element list.
func listField(fields map[string]json.RawMessage, name string) []string {
	data, ok := fields[name]
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}
