package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelqueue/platform/pkg/common/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// SheetsAuth holds either a static bearer token or service account credentials.
type SheetsAuth struct {
	AccessToken         string
	ServiceAccountEmail string
	PrivateKey          string
	TokenURL            string
}

// NewSheetsHTTPClient builds an oauth2 client for the Sheets API on top of the
// instrumented outbound transport.
func NewSheetsHTTPClient(ctx context.Context, auth SheetsAuth, timeout time.Duration) *http.Client {
	base := httpclient.New("sheets", timeout)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	if auth.AccessToken != "" {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.AccessToken}))
	} else {
		conf := &jwt.Config{
			Email:      auth.ServiceAccountEmail,
			PrivateKey: []byte(auth.PrivateKey),
			Scopes:     []string{sheetsScope},
			TokenURL:   auth.TokenURL,
		}
		client = conf.Client(ctx)
	}
	client.Timeout = timeout
	return client
}

// SheetsStore talks to the Google Sheets v4 values API.
type SheetsStore struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string
}

func NewSheetsStore(client *http.Client, baseURL, spreadsheetID string) *SheetsStore {
	return &SheetsStore{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
	}
}

type valueRange struct {
	Range          string          `json:"range,omitempty"`
	MajorDimension string          `json:"majorDimension,omitempty"`
	Values         [][]interface{} `json:"values"`
}

func (s *SheetsStore) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	vr, err := s.get(ctx, A1Range(sheet, ""))
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(vr.Values))
	for i, cells := range vr.Values {
		rows[i] = make([]string, len(cells))
		for j, c := range cells {
			rows[i][j] = cellString(c)
		}
	}
	return rows, nil
}

func (s *SheetsStore) ReadCell(ctx context.Context, sheet string, row, column int) (string, error) {
	vr, err := s.get(ctx, A1Range(sheet, CellName(column, row)))
	if err != nil {
		return "", err
	}
	if len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
		return "", nil
	}
	return cellString(vr.Values[0][0]), nil
}

func (s *SheetsStore) UpdateCells(ctx context.Context, sheet string, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]valueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, valueRange{
			Range:  A1Range(sheet, CellName(u.Column, u.Row)),
			Values: [][]interface{}{{u.Value}},
		})
	}
	body := map[string]interface{}{
		"valueInputOption": "RAW",
		"data":             data,
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values:batchUpdate", s.baseURL, url.PathEscape(s.spreadsheetID))
	_, err := s.do(ctx, http.MethodPost, endpoint, body)
	return err
}

func (s *SheetsStore) AppendRow(ctx context.Context, sheet string, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(A1Range(sheet, "A1")))
	_, err := s.do(ctx, http.MethodPost, endpoint, valueRange{Values: [][]interface{}{row}})
	return err
}

func (s *SheetsStore) get(ctx context.Context, a1 string) (*valueRange, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?majorDimension=ROWS",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(a1))
	raw, err := s.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var vr valueRange
	if err := json.Unmarshal(raw, &vr); err != nil {
		return nil, fmt.Errorf("decode sheets response: %w", err)
	}
	return &vr, nil
}

func (s *SheetsStore) do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal sheets request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sheets response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
