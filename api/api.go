package api

import (
	"fmt"
	"net/http"

	"github.com/typesense/typesense-go/typesense/api"

	"github.com/tallyhq/tally/config"

	"github.com/tallyhq/tally/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/tallyhq/tally"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	tally  *tally.Tally
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/rewards", a.CreateReward)
	router.GET("/rewards/:id", a.GetReward)
	router.GET("/rewards", a.GetAllRewards)
	router.PUT("/rewards/:id", a.UpdateReward)
	router.DELETE("/rewards/:id", a.DeactivateReward)

	router.POST("/redemptions", a.CreateRedemption)
	router.POST("/redemptions/queue", a.QueueRedemption)
	router.GET("/redemptions/:id", a.GetRedemption)
	router.GET("/redemptions", a.GetAllRedemptions)
	router.PUT("/redemptions/:id/status", a.UpdateRedemptionStatus)
	router.GET("/redemptions/:id/ledger", a.GetRedemptionLedger)

	router.POST("/balances", a.CreateBalance)
	router.GET("/balances/:user_id", a.GetBalance)
	router.POST("/balances/:user_id/adjust", a.AdjustBalance)

	router.GET("/ledger/:user_id", a.GetLedgerEntries)

	router.GET("/backup", a.BackupDB)
	router.GET("/backup-s3", a.BackupDBS3)

	router.POST("/search/:collection", a.Search)
	router.POST("/multi-search", a.MultiSearch)

	router.POST("/reindex", a.StartReindex)
	router.GET("/reindex", a.GetReindexProgress)
	return a.router
}

func NewAPI(b *tally.Tally) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	r.POST("/webhook", func(c *gin.Context) {
		var payload map[string]interface{}
		err := c.Bind(&payload)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(payload)
		c.JSON(200, "webhook received")
	})

	return &Api{tally: b, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.tally.Search(collection, &query)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) MultiSearch(c *gin.Context) {
	var query api.MultiSearchSearchesParameter
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.tally.MultiSearch(&query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
