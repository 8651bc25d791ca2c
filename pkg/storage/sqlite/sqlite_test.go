package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/wwppc/contestd/pkg/storage/sqlite"
	"github.com/wwppc/contestd/pkg/storage/testutil"
)

const maxHistory = 5

var testDB *sqlite.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "test_"+uuid.NewString()+".db")

	var err error
	testDB, err = sqlite.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.Remove(dbPath)

	os.Exit(code)
}

func TestRepository(t *testing.T) {
	testutil.RunRepositorySuite(t, sqlite.NewRepository(testDB, maxHistory), maxHistory)
}

func TestMigrateIdempotent(t *testing.T) {
	if err := testDB.Migrate(); err != nil {
		t.Fatalf("second migration run: %s", err)
	}
}
