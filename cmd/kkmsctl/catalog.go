package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/manish-shre/KKMS/internal/config"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/manish-shre/KKMS/internal/store"
	sdk "github.com/matrixorigin/moi-go-sdk"
	"github.com/spf13/cobra"
)

func newCatalogCmd(load func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the data catalog mirror of members and events",
	}
	cmd.AddCommand(newCatalogInitCmd(load), newCatalogSyncCmd(load))
	return cmd
}

func newCatalogInitCmd(load func() *config.Config) *cobra.Command {
	var dbName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the mirror database and tables, printing their ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			client, err := cfg.NewRawClient()
			if err != nil {
				return err
			}
			catalogID := sdk.CatalogID(cfg.MOI.CatalogID)
			if catalogID == 0 {
				catalogID = 1
			}
			if dbName == "" {
				dbName = cfg.Database.Name
			}
			ids, err := initCatalog(cmd.Context(), client, catalogID, dbName)
			if err != nil {
				return fmt.Errorf("catalog init: %w", err)
			}
			cmd.Printf("moi:\n  database_id: %d\n", ids.DatabaseID)
			if ids.Members != 0 {
				cmd.Printf("  members_table_id: %d\n", ids.Members)
			}
			if ids.Events != 0 {
				cmd.Printf("  events_table_id: %d\n", ids.Events)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbName, "database", "", "catalog database name (defaults to database.name)")
	return cmd
}

func newCatalogSyncCmd(load func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push every member and event to the mirror tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			client, err := cfg.NewRawClient()
			if err != nil {
				return err
			}
			db, err := cfg.OpenGormDB()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			ctx := cmd.Context()
			members, err := store.NewTable[model.Member](db, "members", nil).List(ctx, store.Query{OrderBy: "created_at", Desc: true})
			if err != nil {
				return err
			}
			events, err := store.NewTable[model.Event](db, "events", nil).List(ctx, store.Query{OrderBy: "event_date"})
			if err != nil {
				return err
			}
			sync := service.NewCatalogSync(client, service.CatalogTables{
				DatabaseID: sdk.DatabaseID(cfg.MOI.DatabaseID),
				Members:    sdk.TableID(cfg.MOI.MembersTableID),
				Events:     sdk.TableID(cfg.MOI.EventsTableID),
			})
			res, err := sync.Sync(ctx, members, events)
			if err != nil {
				return err
			}
			cmd.Printf("synced %d members, %d events\n", res.Members, res.Events)
			return nil
		},
	}
}

var mirrorTables = []struct {
	name    string
	columns []sdk.Column
}{
	{"members", []sdk.Column{
		{Name: "id", Type: "VARCHAR(36)", IsPk: true, Comment: "member id"},
		{Name: "name", Type: "VARCHAR(255)", Comment: "full name"},
		{Name: "designation", Type: "VARCHAR(255)", Comment: "role in the organization"},
		{Name: "photo_url", Type: "VARCHAR(1024)", Comment: "public photo URL"},
		{Name: "bio", Type: "TEXT", Comment: "short biography"},
		{Name: "contact", Type: "VARCHAR(255)", Comment: "contact details"},
		{Name: "created_at", Type: "DATETIME", Comment: "when the member was added"},
	}},
	{"events", []sdk.Column{
		{Name: "id", Type: "VARCHAR(36)", IsPk: true, Comment: "event id"},
		{Name: "title", Type: "VARCHAR(255)", Comment: "event title"},
		{Name: "description", Type: "TEXT", Comment: "event description"},
		{Name: "event_date", Type: "DATE", Comment: "calendar date of the event"},
		{Name: "location", Type: "VARCHAR(255)", Comment: "venue"},
		{Name: "image_url", Type: "VARCHAR(1024)", Comment: "public image URL"},
		{Name: "is_featured", Type: "BOOLEAN", Comment: "shown on the home page"},
		{Name: "created_at", Type: "DATETIME", Comment: "when the event was added"},
	}},
}

// initCatalog creates the mirror database and tables. Existing objects are
// reused; a table that already existed is reported with id 0.
func initCatalog(ctx context.Context, client *sdk.RawClient, catalogID sdk.CatalogID, dbName string) (service.CatalogTables, error) {
	var ids service.CatalogTables
	dbResp, err := client.CreateDatabase(ctx, &sdk.DatabaseCreateRequest{
		CatalogID:    catalogID,
		DatabaseName: dbName,
		Comment:      "KKMS members and events",
	})
	switch {
	case err == nil:
		ids.DatabaseID = dbResp.DatabaseID
		logger.Info("catalog: database created", "id", ids.DatabaseID)
	case isDuplicate(err):
		logger.Info("catalog: database already exists, discovering ID", "name", dbName)
		if ids.DatabaseID, err = discoverDatabaseID(ctx, client, catalogID, dbName); err != nil {
			return ids, err
		}
	default:
		return ids, fmt.Errorf("create database: %w", err)
	}

	for _, t := range mirrorTables {
		resp, err := client.CreateTable(ctx, &sdk.TableCreateRequest{
			DatabaseID: ids.DatabaseID,
			Name:       t.name,
			Columns:    t.columns,
			Comment:    t.name,
		})
		if err != nil {
			if isDuplicate(err) {
				logger.Info("catalog: table already exists, skipping", "name", t.name)
				continue
			}
			return ids, fmt.Errorf("create table %s: %w", t.name, err)
		}
		logger.Info("catalog: table created", "name", t.name, "id", resp.TableID)
		if t.name == "members" {
			ids.Members = resp.TableID
		} else {
			ids.Events = resp.TableID
		}
	}
	return ids, nil
}

func discoverDatabaseID(ctx context.Context, client *sdk.RawClient, catalogID sdk.CatalogID, dbName string) (sdk.DatabaseID, error) {
	resp, err := client.ListDatabases(ctx, &sdk.DatabaseListRequest{CatalogID: catalogID})
	if err != nil {
		return 0, fmt.Errorf("list databases: %w", err)
	}
	for _, db := range resp.List {
		if db.DatabaseName == dbName {
			logger.Info("catalog: database discovered", "id", db.DatabaseID)
			return db.DatabaseID, nil
		}
	}
	return 0, fmt.Errorf("database %s not found in catalog %d", dbName, catalogID)
}

func isDuplicate(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate") || strings.Contains(s, "already exist") || strings.Contains(s, "conflict")
}
