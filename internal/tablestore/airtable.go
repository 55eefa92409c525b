package tablestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultEndpoint = "https://api.airtable.com/v0"

// AirtableStore talks to the Airtable REST API. It is the production backend;
// table and field names come straight through from the caller.
type AirtableStore struct {
	APIKey   string
	BaseID   string
	Endpoint string
	Client   *http.Client
}

// NewAirtable builds a store for one Airtable base.
func NewAirtable(apiKey, baseID string) *AirtableStore {
	return &AirtableStore{APIKey: apiKey, BaseID: baseID}
}

func (a *AirtableStore) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

func (a *AirtableStore) tableURL(table string) string {
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return endpoint + "/" + url.PathEscape(a.BaseID) + "/" + url.PathEscape(table)
}

type airtableRecord struct {
	ID     string `json:"id,omitempty"`
	Fields Fields `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

type airtableError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AirtableStore) Find(ctx context.Context, table, id string) (Record, error) {
	var rec airtableRecord
	if err := a.do(ctx, http.MethodGet, a.tableURL(table)+"/"+url.PathEscape(id), nil, &rec); err != nil {
		return Record{}, err
	}
	return Record{ID: rec.ID, Fields: rec.Fields}, nil
}

func (a *AirtableStore) List(ctx context.Context, table string, q Query) ([]Record, error) {
	params := url.Values{}
	if formula := CompileFormula(q.Filter); formula != "" {
		params.Set("filterByFormula", formula)
	}
	for i, s := range q.Sort {
		params.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		direction := "asc"
		if s.Desc {
			direction = "desc"
		}
		params.Set(fmt.Sprintf("sort[%d][direction]", i), direction)
	}
	var out []Record
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}
		u := a.tableURL(table)
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		var page airtableList
		if err := a.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			out = append(out, Record{ID: rec.ID, Fields: rec.Fields})
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (a *AirtableStore) Create(ctx context.Context, table string, fields []Fields) ([]Record, error) {
	if len(fields) > MaxBatch {
		return nil, fmt.Errorf("create batch of %d exceeds limit of %d", len(fields), MaxBatch)
	}
	body := airtableList{}
	for _, f := range fields {
		body.Records = append(body.Records, airtableRecord{Fields: f})
	}
	var res airtableList
	if err := a.do(ctx, http.MethodPost, a.tableURL(table), body, &res); err != nil {
		return nil, err
	}
	return toRecords(res.Records), nil
}

func (a *AirtableStore) Update(ctx context.Context, table string, ups []Update) ([]Record, error) {
	if len(ups) > MaxBatch {
		return nil, fmt.Errorf("update batch of %d exceeds limit of %d", len(ups), MaxBatch)
	}
	body := airtableList{}
	for _, up := range ups {
		body.Records = append(body.Records, airtableRecord{ID: up.ID, Fields: up.Fields})
	}
	var res airtableList
	if err := a.do(ctx, http.MethodPatch, a.tableURL(table), body, &res); err != nil {
		return nil, err
	}
	return toRecords(res.Records), nil
}

// UpdateIfEqual verifies the guard and then writes. Airtable has no
// conditional write, so this narrows the race window rather than closing it;
// the memory and SQLite stores are atomic.
func (a *AirtableStore) UpdateIfEqual(ctx context.Context, table, id, guardField string, guardValue any, fields Fields) (Record, error) {
	current, err := a.Find(ctx, table, id)
	if err != nil {
		return Record{}, err
	}
	if !fieldEquals(current.Fields[guardField], guardValue) {
		return Record{}, ErrConflict
	}
	recs, err := a.Update(ctx, table, []Update{{ID: id, Fields: fields}})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

func (a *AirtableStore) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := a.client().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		var ae airtableError
		if json.Unmarshal(data, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("airtable: %s (%s)", ae.Error.Message, res.Status)
		}
		return fmt.Errorf("airtable: unexpected status %s", res.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func toRecords(in []airtableRecord) []Record {
	out := make([]Record, 0, len(in))
	for _, rec := range in {
		fields := rec.Fields
		if fields == nil {
			fields = Fields{}
		}
		out = append(out, Record{ID: rec.ID, Fields: fields})
	}
	return out
}

// CompileFormula renders a Filter as an Airtable filterByFormula expression.
func CompileFormula(f Filter) string {
	if len(f) == 0 {
		return ""
	}
	terms := make([]string, 0, len(f))
	for _, c := range f {
		terms = append(terms, fmt.Sprintf("{%s} = %s", c.Field, formulaValue(c.Value)))
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "AND(" + strings.Join(terms, ", ") + ")"
}

func formulaValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(val) + `"`
	default:
		if n := toNumber(v); n != nil {
			return strconv.FormatFloat(*n, 'f', -1, 64)
		}
		return `""`
	}
}
