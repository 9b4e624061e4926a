package middlewares

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"costtrack-backend/database"
	"costtrack-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mw.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestTxCommitsAndRollsBack(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tx(db))
	app.Post("/ok", func(c *fiber.Ctx) error {
		tx, err := database.GetDB(c)
		if err != nil {
			return err
		}
		if err := tx.Create(&models.Contractor{Name: "Kept"}).Error; err != nil {
			return err
		}
		return c.SendStatus(http.StatusCreated)
	})
	app.Post("/fail", func(c *fiber.Ctx) error {
		tx, err := database.GetDB(c)
		if err != nil {
			return err
		}
		if err := tx.Create(&models.Contractor{Name: "Dropped"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var names []string
	require.NoError(t, db.Model(&models.Contractor{}).Order("name").Pluck("name", &names).Error)
	assert.Equal(t, []string{"Kept"}, names)
}

func TestIdempotencyReplaysSuccessfulResponse(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", "u-1")
		return c.Next()
	})
	app.Use(Idempotency(db))
	app.Post("/payments", func(c *fiber.Ctx) error {
		calls++
		return c.Status(http.StatusCreated).JSON(fiber.Map{"call": calls})
	})

	send := func(key, body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", key)
		resp, err := app.Test(req, int((5 * time.Second).Milliseconds()))
		require.NoError(t, err)
		return resp
	}

	first := send("k-1", `{"amount":10}`)
	assert.Equal(t, http.StatusCreated, first.StatusCode)

	second := send("k-1", `{"amount":10}`)
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replay"))
	body, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"call":1}`, string(body))
	assert.Equal(t, 1, calls)

	assert.Equal(t, http.StatusConflict, send("k-1", `{"amount":11}`).StatusCode)

	send("k-2", `{"amount":10}`)
	assert.Equal(t, 2, calls)
}

func TestRequestHashIsUserScoped(t *testing.T) {
	a := requestHash("POST", "/api/payments", []byte("{}"), "u-1")
	b := requestHash("POST", "/api/payments", []byte("{}"), "u-2")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
