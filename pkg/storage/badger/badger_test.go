package badger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/wwppc/contestd/pkg/storage/badger"
	"github.com/wwppc/contestd/pkg/storage/testutil"
)

const maxHistory = 5

var testDB *badger.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestRepository(t *testing.T) {
	testutil.RunRepositorySuite(t, badger.NewRepository(testDB, maxHistory), maxHistory)
}
