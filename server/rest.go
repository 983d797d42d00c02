// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/cinecluster/common/log"
	"github.com/gorse-io/cinecluster/config"
	"github.com/gorse-io/cinecluster/dataset"
	"github.com/gorse-io/cinecluster/logics"
	"github.com/gorse-io/cinecluster/master"
	"github.com/gorse-io/cinecluster/storage/blob"
	"github.com/gorse-io/cinecluster/storage/cache"
	"github.com/gorse-io/cinecluster/storage/meta"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config     *config.Config
	Engine     *logics.Engine
	Artifacts  *master.Artifacts
	BlobStore  blob.Store
	MetaStore  meta.Database
	CacheStore cache.Database
	HttpServer *http.Server
	WebService *restful.WebService

	// ModelVersion prefixes cache keys so that results of an older model are never served.
	ModelVersion string

	numRequests        atomic.Int64
	numRecommendations atomic.Int64
}

// Handler creates the web service and returns the container serving it.
func (s *RestServer) Handler() *restful.Container {
	s.WebService = new(restful.WebService)
	s.CreateWebService()
	container := restful.NewContainer()
	container.Add(s.WebService)
	// register openapi
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	// allow all origins
	cors := restful.CrossOriginResourceSharing{
		AllowedHeaders: []string{"Content-Type", "Accept"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CookiesAllowed: true,
		Container:      container,
	}
	container.Filter(cors.Filter)
	container.Filter(container.OPTIONSFilter)
	// register prometheus
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer starts the REST-ful API server and blocks until it stops.
func (s *RestServer) StartHttpServer() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.HttpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	log.Logger().Info("start http server", zap.String("url", fmt.Sprintf("http://%s", addr)))
	if err := s.HttpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return nil
}

func (s *RestServer) Shutdown(ctx context.Context) error {
	if s.HttpServer == nil {
		return nil
	}
	return errors.Trace(s.HttpServer.Shutdown(ctx))
}

func (s *RestServer) LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if requestId := req.HeaderParameter("X-Request-ID"); requestId != "" {
		resp.Header().Set("X-Request-ID", requestId)
	}
	start := time.Now()
	chain.ProcessFilter(req, resp)
	s.numRequests.Inc()
	RequestsTotalVec.WithLabelValues(req.Request.Method, strconv.Itoa(resp.StatusCode())).Inc()
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("used_time", time.Since(start)))
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(s.LogFilter)

	// Get a user
	ws.Route(ws.GET("/user/{user-id}").To(s.getUser).
		Doc("Get a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Returns(http.StatusOK, "OK", dataset.User{}).
		Returns(http.StatusNotFound, "user not found", nil).
		Writes(dataset.User{}))
	// Get the cluster of a user
	ws.Route(ws.GET("/user/{user-id}/cluster").To(s.getCluster).
		Doc("Get the cluster of a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(ClusterResponse{}))
	// Get recommendations
	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommended movies for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]dataset.Movie{}))
	ws.Route(ws.POST("/recommendations").To(s.postRecommendations).
		Doc("Get recommended movies for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Reads(RecommendRequest{}).
		Writes([]dataset.Movie{}))
	// Model
	ws.Route(ws.GET("/model").To(s.getModel).
		Doc("Get the clustering model summary.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Writes(ModelResponse{}))
	ws.Route(ws.GET("/visualizations/elbow").To(s.getBlob(master.ElbowPlotFile)).
		Doc("Get the elbow plot.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Produces("image/png"))
	ws.Route(ws.GET("/visualizations/clusters").To(s.getBlob(master.ClusterPlotFile)).
		Doc("Get the cluster scatter plot.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Produces("image/png"))
	// Health
	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Health check.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}))
}

type ClusterResponse struct {
	UserId  int64
	Cluster int
}

type RecommendRequest struct {
	UserId             int64 `json:"user_id"`
	NumRecommendations *int  `json:"num_recommendations,omitempty"`
}

type ModelResponse struct {
	K            int       `json:"k"`
	Inertia      float64   `json:"inertia"`
	Inertias     []float64 `json:"inertias"`
	ClusterSizes []int     `json:"cluster_sizes"`
	Run          *meta.Run `json:"run,omitempty"`
}

type HealthResponse struct {
	Ready              bool  `json:"ready"`
	NumUsers           int   `json:"n_users"`
	NumMovies          int   `json:"n_movies"`
	NumRequests        int64 `json:"n_requests"`
	NumRecommendations int64 `json:"n_recommendations"`
}

func parseUserId(request *restful.Request, response *restful.Response) (int64, bool) {
	userId, err := strconv.ParseInt(request.PathParameter("user-id"), 10, 64)
	if err != nil {
		BadRequest(response, errors.NotValidf("user id %q", request.PathParameter("user-id")))
		return 0, false
	}
	return userId, true
}

// ParseInt parses a query parameter, returning fallback when it is absent.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	return strconv.Atoi(valueString)
}

func (s *RestServer) getUser(request *restful.Request, response *restful.Response) {
	userId, ok := parseUserId(request, response)
	if !ok {
		return
	}
	user, err := s.Engine.GetUser(userId)
	if err != nil {
		handleError(response, err)
		return
	}
	Ok(response, user)
}

func (s *RestServer) getCluster(request *restful.Request, response *restful.Response) {
	userId, ok := parseUserId(request, response)
	if !ok {
		return
	}
	label, err := s.Engine.GetCluster(userId)
	if err != nil {
		handleError(response, err)
		return
	}
	Ok(response, ClusterResponse{UserId: userId, Cluster: label})
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	userId, ok := parseUserId(request, response)
	if !ok {
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.DefaultN)
	if err != nil || n <= 0 {
		BadRequest(response, errors.NotValidf("n %q", request.QueryParameter("n")))
		return
	}
	s.writeRecommend(request.Request.Context(), response, userId, n)
}

func (s *RestServer) postRecommendations(request *restful.Request, response *restful.Response) {
	var body RecommendRequest
	if err := request.ReadEntity(&body); err != nil {
		BadRequest(response, err)
		return
	}
	n := s.Config.Recommend.DefaultN
	if body.NumRecommendations != nil {
		n = *body.NumRecommendations
	}
	if n <= 0 {
		BadRequest(response, errors.NotValidf("num_recommendations %d", n))
		return
	}
	s.writeRecommend(request.Request.Context(), response, body.UserId, n)
}

func (s *RestServer) writeRecommend(ctx context.Context, response *restful.Response, userId int64, n int) {
	start := time.Now()
	movies, err := s.Recommend(ctx, userId, n)
	if err != nil {
		handleError(response, err)
		return
	}
	RecommendSeconds.Observe(time.Since(start).Seconds())
	s.numRecommendations.Inc()
	Ok(response, movies)
}

// Recommend returns recommendations through the result cache when one is configured.
func (s *RestServer) Recommend(ctx context.Context, userId int64, n int) ([]dataset.Movie, error) {
	key := cache.RecommendKey(s.ModelVersion, userId, n)
	if s.CacheStore != nil {
		value, ok, err := s.CacheStore.Get(ctx, key)
		if err != nil {
			log.Logger().Warn("failed to read recommendation cache", zap.String("key", key), zap.Error(err))
		} else if ok {
			var movies []dataset.Movie
			if err = json.Unmarshal(value, &movies); err == nil {
				RecommendCacheHitTotal.Inc()
				return movies, nil
			}
			log.Logger().Warn("failed to decode recommendation cache", zap.String("key", key), zap.Error(err))
		}
		RecommendCacheMissTotal.Inc()
	}
	movies, err := s.Engine.Recommend(userId, n)
	if err != nil {
		return nil, err
	}
	if s.CacheStore != nil {
		value, err := json.Marshal(movies)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = s.CacheStore.Set(ctx, key, value); err != nil {
			log.Logger().Warn("failed to write recommendation cache", zap.String("key", key), zap.Error(err))
		}
	}
	return movies, nil
}

func (s *RestServer) getModel(_ *restful.Request, response *restful.Response) {
	resp := ModelResponse{
		K:            s.Artifacts.K,
		Inertia:      s.Artifacts.Model.Inertia,
		Inertias:     s.Artifacts.Inertias,
		ClusterSizes: s.Artifacts.Assignment.Sizes(s.Artifacts.K),
	}
	if s.MetaStore != nil {
		run, err := s.MetaStore.LatestRun()
		if err == nil {
			resp.Run = run
		} else if !errors.Is(err, errors.NotFound) {
			log.ResponseLogger(response).Warn("failed to load latest training run", zap.Error(err))
		}
	}
	Ok(response, resp)
}

func (s *RestServer) getBlob(name string) restful.RouteFunction {
	return func(_ *restful.Request, response *restful.Response) {
		data, err := blob.ReadBytes(s.BlobStore, name)
		if err != nil {
			handleError(response, err)
			return
		}
		response.Header().Set("Access-Control-Allow-Origin", "*")
		response.Header().Set("Content-Type", "image/png")
		if _, err = response.Write(data); err != nil {
			log.ResponseLogger(response).Error("failed to write image", zap.Error(err))
		}
	}
}

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	ctx := s.Engine.Context()
	Ok(response, HealthResponse{
		Ready:              true,
		NumUsers:           ctx.Dataset.CountUsers(),
		NumMovies:          ctx.Dataset.CountMovies(),
		NumRequests:        s.numRequests.Load(),
		NumRecommendations: s.numRecommendations.Load(),
	})
}

func handleError(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
