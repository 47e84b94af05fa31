// Package web serves a read-only view of the run history.
package web

import (
	"database/sql"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
)

// Embed the 'templates' directory.
// The path is relative to this file (internal/web/web.go).
//
//go:embed templates
var Assets embed.FS

// Helper for templates
var funcMap = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// ItemView is the JSON shape of one run item.
type ItemView struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Price    string `json:"price"`
	Business string `json:"business_price"`
	Link     string `json:"link,omitempty"`
	Error    string `json:"error,omitempty"`
}

func itemView(it models.ItemResult) ItemView {
	return ItemView{
		Index:    it.Index,
		Name:     it.Name,
		Status:   string(it.Status),
		Price:    it.Result.Regular.Display(),
		Business: it.Result.Business.Display(),
		Link:     it.Result.Link,
		Error:    it.Error,
	}
}

// pages builds one template per page (base + page) to avoid block collisions.
func pages() (runs, run *template.Template, err error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(Assets, "templates/base.html")
	if err != nil {
		return nil, nil, err
	}
	runs, _ = base.Clone()
	if runs, err = runs.ParseFS(Assets, "templates/runs.html"); err != nil {
		return nil, nil, err
	}
	run, _ = base.Clone()
	if run, err = run.ParseFS(Assets, "templates/run.html"); err != nil {
		return nil, nil, err
	}
	return runs, run, nil
}

// NewRouter wires the dashboard and JSON endpoints over the run history.
func NewRouter(database *sql.DB) (*gin.Engine, error) {
	runsTmpl, runTmpl, err := pages()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", func(c *gin.Context) {
		runs, err := db.ListRuns(database)
		if err != nil {
			log.Printf("DB error: %v", err)
			c.String(http.StatusInternalServerError, "Failed to load runs")
			return
		}
		c.Render(http.StatusOK, render.HTML{Template: runsTmpl, Name: "base.html", Data: runs})
	})

	router.GET("/runs/:id", func(c *gin.Context) {
		run, items, status := loadRun(database, c.Param("id"))
		if status != http.StatusOK {
			c.String(status, http.StatusText(status))
			return
		}
		data := struct {
			Run   *db.Run
			Items []models.ItemResult
		}{run, items}
		c.Render(http.StatusOK, render.HTML{Template: runTmpl, Name: "base.html", Data: data})
	})

	api := router.Group("/api")
	api.GET("/runs", func(c *gin.Context) {
		runs, err := db.ListRuns(database)
		if err != nil {
			log.Printf("DB error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load runs"})
			return
		}
		out := make([]gin.H, 0, len(runs))
		for _, r := range runs {
			out = append(out, runJSON(&r))
		}
		c.JSON(http.StatusOK, out)
	})

	api.GET("/runs/:id", func(c *gin.Context) {
		run, items, status := loadRun(database, c.Param("id"))
		if status != http.StatusOK {
			c.JSON(status, gin.H{"error": http.StatusText(status)})
			return
		}
		views := make([]ItemView, 0, len(items))
		for _, it := range items {
			views = append(views, itemView(it))
		}
		body := runJSON(run)
		body["items"] = views
		c.JSON(http.StatusOK, body)
	})

	return router, nil
}

func loadRun(database *sql.DB, id string) (*db.Run, []models.ItemResult, int) {
	run, err := db.GetRun(database, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, http.StatusNotFound
	}
	if err != nil {
		log.Printf("DB error: %v", err)
		return nil, nil, http.StatusInternalServerError
	}
	items, err := db.GetRunItems(database, id)
	if err != nil {
		log.Printf("DB error: %v", err)
		return nil, nil, http.StatusInternalServerError
	}
	return run, items, http.StatusOK
}

func runJSON(r *db.Run) gin.H {
	h := gin.H{
		"id":            r.ID,
		"input":         r.InputPath,
		"output":        r.OutputPath,
		"status":        r.Status,
		"business_auth": r.BusinessAuth,
		"total":         r.Total,
		"success":       r.Success,
		"errors":        r.Errors,
		"not_found":     r.NotFound,
		"saves":         r.Saves,
		"started_at":    r.StartedAt,
	}
	if r.FinishedAt.Valid {
		h["finished_at"] = r.FinishedAt.Time
	}
	return h
}
