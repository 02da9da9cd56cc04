package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"apiflow/engine"
)

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// RegisterRoutes mounts the façade's operations onto a gin.Engine as a
// thin JSON adapter, mirroring the teacher's NewHttpHandler/handleRequest
// pattern in runtime/http_handler.go: gin.Context in, error logged via
// slog and reported as a JSON body, success marshaled straight through.
func RegisterRoutes(g *gin.Engine, f *Facade) {
	g.GET("/workflows/:id", f.handleGetWorkflow)
	g.GET("/workflows", f.handleListWorkflows)
	g.PUT("/workflows/:id", f.handleUpsertWorkflow)
	g.DELETE("/workflows/:id", f.handleDeleteWorkflow)

	g.GET("/apis/:id", f.handleGetApi)
	g.GET("/apis", f.handleListApis)
	g.PUT("/apis/:id", f.handleUpsertApi)
	g.DELETE("/apis/:id", f.handleDeleteApi)
	g.POST("/apis/:id/rename", f.handleRenameApi)

	g.GET("/runs/:id", f.handleGetRun)
	g.GET("/runs", f.handleListRuns)

	g.GET("/tenants/:id", f.handleGetTenantInfo)

	g.POST("/workflows/:id/execute", f.handleExecuteByID)
	g.POST("/execute", f.handleExecuteInline)

	g.GET("/logs/:runId", f.handleSubscribeLogs)
}

func tenantOf(c *gin.Context) string { return c.GetHeader("X-Tenant-Id") }

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if engine.KindOf(err) == engine.KindValidation {
		status = http.StatusBadRequest
	}
	slog.Error("rpc request failed", "path", c.Request.URL.Path, "error", err.Error())
	c.JSON(status, gin.H{"message": err.Error()})
}

func (f *Facade) handleGetWorkflow(c *gin.Context) {
	wf, err := f.GetWorkflow(c.Request.Context(), c.Param("id"), tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (f *Facade) handleListWorkflows(c *gin.Context) {
	limit, offset := pageParams(c)
	page, err := f.ListWorkflows(c.Request.Context(), limit, offset, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (f *Facade) handleUpsertWorkflow(c *gin.Context) {
	var wf engine.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	wf.ID = c.Param("id")
	saved, err := f.UpsertWorkflow(c.Request.Context(), wf, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (f *Facade) handleDeleteWorkflow(c *gin.Context) {
	ok, err := f.DeleteWorkflow(c.Request.Context(), c.Param("id"), tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}

func (f *Facade) handleGetApi(c *gin.Context) {
	api, err := f.GetApi(c.Request.Context(), c.Param("id"), tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	if api == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "api not found"})
		return
	}
	c.JSON(http.StatusOK, api)
}

func (f *Facade) handleListApis(c *gin.Context) {
	limit, offset := pageParams(c)
	page, err := f.ListApis(c.Request.Context(), limit, offset, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (f *Facade) handleUpsertApi(c *gin.Context) {
	var api engine.ApiConfig
	if err := c.ShouldBindJSON(&api); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	api.ID = c.Param("id")
	saved, err := f.UpsertApi(c.Request.Context(), api, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (f *Facade) handleDeleteApi(c *gin.Context) {
	ok, err := f.DeleteApi(c.Request.Context(), c.Param("id"), tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}

func (f *Facade) handleRenameApi(c *gin.Context) {
	var body struct {
		NewID string `json:"newId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	renamed, err := f.UpdateApiConfigId(c.Request.Context(), c.Param("id"), body.NewID, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renamed)
}

func (f *Facade) handleGetRun(c *gin.Context) {
	run, err := f.GetRun(c.Request.Context(), c.Param("id"), tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (f *Facade) handleListRuns(c *gin.Context) {
	limit, offset := pageParams(c)
	page, err := f.ListRuns(c.Request.Context(), c.Query("configId"), limit, offset, tenantOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (f *Facade) handleGetTenantInfo(c *gin.Context) {
	info, err := f.GetTenantInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "tenant not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

type executeBody struct {
	Payload     any            `json:"payload"`
	Credentials any            `json:"credentials"`
	CacheMode   engine.CacheMode `json:"cacheMode"`
	TimeoutMs   int64          `json:"timeoutMs"`
	Persist     bool           `json:"persist"`
}

func (f *Facade) handleExecuteByID(c *gin.Context) {
	var body executeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	result, err := f.ExecuteWorkflow(c.Request.Context(), ExecuteRequest{
		WorkflowID:  c.Param("id"),
		Payload:     body.Payload,
		Credentials: body.Credentials,
		TenantID:    tenantOf(c),
		CacheMode:   body.CacheMode,
		Timeout:     msToDuration(body.TimeoutMs),
		Persist:     body.Persist,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (f *Facade) handleExecuteInline(c *gin.Context) {
	var body struct {
		Workflow engine.Workflow `json:"workflow"`
		executeBody
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	result, err := f.ExecuteWorkflow(c.Request.Context(), ExecuteRequest{
		Workflow:    &body.Workflow,
		Payload:     body.Payload,
		Credentials: body.Credentials,
		TenantID:    tenantOf(c),
		CacheMode:   body.CacheMode,
		Timeout:     msToDuration(body.TimeoutMs),
		Persist:     body.Persist,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleSubscribeLogs streams LogEntry records for one run as Server-Sent
// Events (event name "log"), the façade's companion real-time channel per
// spec.md §6.
func (f *Facade) handleSubscribeLogs(c *gin.Context) {
	ch := f.Subscribe(c.Param("runId"))
	c.Stream(func(w io.Writer) bool {
		entry, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent("log", entry)
		return true
	})
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return limit, offset
}
