package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/sellercentry/account-health/pkg/apperrors"
)

// GoogleConfig holds credentials for the Google Sheets backend.
type GoogleConfig struct {
	// CredentialsJSON is a service-account key. Takes precedence over CredentialsFile.
	CredentialsJSON string
	// CredentialsFile is a path to a service-account key file.
	CredentialsFile string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Endpoint overrides the API base URL, mainly for tests.
	Endpoint string
}

// GoogleClient implements Client on the Google Sheets v4 API.
type GoogleClient struct {
	svc    *gsheets.Service
	logger *zap.Logger
}

// NewGoogleClient creates a Sheets client. Without explicit credentials it
// falls back to Application Default Credentials.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig, logger *zap.Logger) (*GoogleClient, error) {
	var opts []option.ClientOption

	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsJSON != "" || cfg.CredentialsFile != "":
		raw := []byte(cfg.CredentialsJSON)
		if len(raw) == 0 {
			var err error
			raw, err = os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read sheets credentials file: %w", err)
			}
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, gsheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sheets credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	default:
		creds, err := google.FindDefaultCredentials(ctx, gsheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default sheets credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleClient{svc: svc, logger: logger.Named("sheets")}, nil
}

// quoteTab renders a tab name for A1 notation: 'It''s' for It's.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func (c *GoogleClient) Probe(ctx context.Context, spreadsheetID, tab string) error {
	_, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, quoteTab(tab)+"!A1").Context(ctx).Do()
	return classify("sheets.Probe", tab, err)
}

// ReadRows returns display strings (FORMATTED_VALUE), the literals the
// mapper parses. Paired with RAW writes, a moved row lands as text: a
// "$1,250.00" or "03/10/2024" cell stops being a number or date for sheet
// formulas. USER_ENTERED would restore typed cells but would also evaluate
// user text starting with "=" and parse dates by the spreadsheet locale.
func (c *GoogleClient) ReadRows(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, quoteTab(tab)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("sheets.ReadRows", tab, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// AppendRow writes with RAW input so cell literals round-trip unchanged and
// are never evaluated as formulas. See ReadRows for what that costs.
func (c *GoogleClient) AppendRow(ctx context.Context, spreadsheetID, tab string, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, v := range cells {
		values[i] = v
	}
	_, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, quoteTab(tab)+"!A1", &gsheets.ValueRange{
		Values: [][]interface{}{values},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return classify("sheets.AppendRow", tab, err)
}

func (c *GoogleClient) UpdateCells(ctx context.Context, spreadsheetID, tab string, row int, cells map[int]string) error {
	if len(cells) == 0 {
		return nil
	}

	cols := make([]int, 0, len(cells))
	for col := range cells {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	data := make([]*gsheets.ValueRange, 0, len(cols))
	for _, col := range cols {
		data = append(data, &gsheets.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", quoteTab(tab), columnLetter(col), row),
			Values: [][]interface{}{{cells[col]}},
		})
	}

	_, err := c.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return classify("sheets.UpdateCells", tab, err)
}

func (c *GoogleClient) DeleteRow(ctx context.Context, spreadsheetID, tab string, row int) error {
	gid, err := c.tabGID(ctx, spreadsheetID, tab)
	if err != nil {
		return err
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    gid,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}).Context(ctx).Do()
	return classify("sheets.DeleteRow", tab, err)
}

// tabGID looks up the numeric sheet id that structural requests need.
func (c *GoogleClient) tabGID(ctx context.Context, spreadsheetID, tab string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, classify("sheets.DeleteRow", tab, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return s.Properties.SheetId, nil
		}
	}
	return 0, tabNotFound("sheets.DeleteRow", tab)
}

// classify maps a Sheets API failure to an apperrors kind.
func classify(op, tab string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperrors.Wrap(apperrors.KindTransport, op, err)
	}

	msg := strings.ToLower(gerr.Message)
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return apperrors.Wrap(apperrors.KindRateLimited, op, err)
	case gerr.Code == http.StatusForbidden && hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded"):
		return apperrors.Wrap(apperrors.KindRateLimited, op, err)
	case gerr.Code == http.StatusBadRequest && strings.Contains(msg, "unable to parse range"):
		return tabNotFound(op, tab)
	case gerr.Code == http.StatusNotFound:
		return apperrors.Wrap(apperrors.KindNotFound, op, err)
	default:
		return apperrors.Wrap(apperrors.KindTransport, op, err)
	}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

var _ Client = (*GoogleClient)(nil)
