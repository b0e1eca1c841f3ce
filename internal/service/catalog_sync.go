package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sdk "github.com/matrixorigin/moi-go-sdk"

	"github.com/manish-shre/KKMS/internal/model"
)

var ErrCatalogNotConfigured = errors.New("catalog mirror not configured")

// CatalogTables locates the mirror tables created by `kkmsctl catalog init`.
type CatalogTables struct {
	DatabaseID sdk.DatabaseID
	Members    sdk.TableID
	Events     sdk.TableID
}

// CatalogSync mirrors members and events into the data catalog as CSV
// imports.
type CatalogSync struct {
	raw    *sdk.RawClient
	sdk    *sdk.SDKClient
	tables CatalogTables
}

func NewCatalogSync(raw *sdk.RawClient, tables CatalogTables) *CatalogSync {
	return &CatalogSync{raw: raw, sdk: sdk.NewSDKClient(raw), tables: tables}
}

// SyncResult reports how many rows went to each table.
type SyncResult struct {
	Members int `json:"members"`
	Events  int `json:"events"`
}

func (s *CatalogSync) Sync(ctx context.Context, members []model.Member, events []model.Event) (SyncResult, error) {
	if s == nil || s.tables.DatabaseID == 0 {
		return SyncResult{}, ErrCatalogNotConfigured
	}
	var res SyncResult
	if err := s.SyncMembers(ctx, members); err != nil {
		return res, err
	}
	res.Members = len(members)
	if err := s.SyncEvents(ctx, events); err != nil {
		return res, err
	}
	res.Events = len(events)
	return res, nil
}

func (s *CatalogSync) SyncMembers(ctx context.Context, members []model.Member) error {
	if len(members) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, m := range members {
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s,%s\n", m.ID, esc(m.Name), esc(m.Designation),
			esc(m.PhotoURL), esc(deref(m.Bio)), esc(deref(m.Contact)), m.CreatedAt.UTC().Format(time.DateTime))
	}
	return s.importCSV(ctx, s.tables.Members, buf.String(), "members.csv", memberColumns)
}

func (s *CatalogSync) SyncEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, e := range events {
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s,%s,%s\n", e.ID, esc(e.Title), esc(e.Description),
			e.EventDate, esc(e.Location), esc(e.ImageURL), strconv.FormatBool(e.IsFeatured),
			e.CreatedAt.UTC().Format(time.DateTime))
	}
	return s.importCSV(ctx, s.tables.Events, buf.String(), "events.csv", eventColumns)
}

var memberColumns = []sdk.FileAndTableColumnMapping{
	{TableColumn: "id", Column: "id", ColNumInFile: 1},
	{TableColumn: "name", Column: "name", ColNumInFile: 2},
	{TableColumn: "designation", Column: "designation", ColNumInFile: 3},
	{TableColumn: "photo_url", Column: "photo_url", ColNumInFile: 4},
	{TableColumn: "bio", Column: "bio", ColNumInFile: 5},
	{TableColumn: "contact", Column: "contact", ColNumInFile: 6},
	{TableColumn: "created_at", Column: "created_at", ColNumInFile: 7},
}

var eventColumns = []sdk.FileAndTableColumnMapping{
	{TableColumn: "id", Column: "id", ColNumInFile: 1},
	{TableColumn: "title", Column: "title", ColNumInFile: 2},
	{TableColumn: "description", Column: "description", ColNumInFile: 3},
	{TableColumn: "event_date", Column: "event_date", ColNumInFile: 4},
	{TableColumn: "location", Column: "location", ColNumInFile: 5},
	{TableColumn: "image_url", Column: "image_url", ColNumInFile: 6},
	{TableColumn: "is_featured", Column: "is_featured", ColNumInFile: 7},
	{TableColumn: "created_at", Column: "created_at", ColNumInFile: 8},
}

func (s *CatalogSync) importCSV(ctx context.Context, tableID sdk.TableID, csv, fileName string, mapping []sdk.FileAndTableColumnMapping) error {
	resp, err := s.raw.UploadLocalFile(ctx, bytes.NewReader([]byte(csv)), fileName, []sdk.FileMeta{{Filename: fileName, Path: "/"}})
	if err != nil {
		slog.Warn("catalog.sync.upload_failed", "table", tableID, "err", err)
		return fmt.Errorf("upload %s: %w", fileName, err)
	}
	if len(resp.ConnFileIds) == 0 {
		slog.Warn("catalog.sync.no_conn_file_ids", "table", tableID)
		return fmt.Errorf("upload %s: no file ids returned", fileName)
	}

	_, err = s.sdk.ImportLocalFileToTable(ctx, &sdk.TableConfig{
		ConnFileIDs:      resp.ConnFileIds,
		NewTable:         false,
		DatabaseID:       s.tables.DatabaseID,
		TableID:          tableID,
		IsColumnName:     false,
		RowStart:         1,
		Conflict:         1,
		ExistedTable:     mapping,
		ExistedTableOpts: sdk.ExistedTableOptions{Method: sdk.ExistedTableOptionAppend},
	})
	if err != nil {
		slog.Warn("catalog.sync.import_failed", "table", tableID, "err", err)
		return fmt.Errorf("import %s: %w", fileName, err)
	}
	slog.Info("catalog.sync.ok", "table", tableID, "file", fileName)
	return nil
}

func esc(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
