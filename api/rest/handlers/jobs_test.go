package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"model-training-service/core/models"
	"model-training-service/core/registry"
)

func TestCreateJobAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/training/jobs", validCreateBody())
	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decodeMap(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "churn-model", body["name"])
	assert.Equal(t, "classification", body["model_type"])
	assert.Equal(t, "sklearn", body["framework"])
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, float64(0), body["progress"])
	assert.Nil(t, body["current_epoch"])
	assert.Equal(t, float64(100), body["total_epochs"])
	assert.Equal(t, map[string]interface{}{}, body["metrics"])
	assert.Equal(t, map[string]interface{}{}, body["best_metrics"])
	assert.Equal(t, []interface{}{}, body["model_artifacts"])
	assert.Equal(t, "user", body["created_by"])
	assert.Nil(t, body["completed_at"])
	assert.Nil(t, body["duration_seconds"])

	// The stored job carries the config defaults
	job, err := env.jobs.Get(body["id"].(string))
	assert.NoError(t, err)
	assert.Equal(t, "ds-1", job.Config.DatasetID)
	assert.Equal(t, "random_forest", job.Config.Algorithm)
	assert.Equal(t, 0.2, job.Config.ValidationSplit)
	assert.Equal(t, 0.1, job.Config.TestSplit)
	assert.False(t, job.Config.CrossValidation)
	assert.True(t, job.Config.EarlyStopping)
	assert.Equal(t, 32, job.Config.BatchSize)
	assert.Equal(t, 0.001, job.Config.LearningRate)
}

func TestCreateJobHonorsOverrides(t *testing.T) {
	env := newTestEnv(t)

	body := validCreateBody()
	body["max_epochs"] = 5
	body["batch_size"] = 64
	body["learning_rate"] = 0.01
	body["early_stopping"] = false
	body["validation_split"] = 0.3
	body["hyperparameters"] = map[string]interface{}{"n_estimators": 200}
	body["tags"] = []string{"experiment", "v2"}

	rec := env.do(http.MethodPost, "/v1/training/jobs", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeMap(t, rec)
	assert.Equal(t, float64(5), resp["total_epochs"])

	job, err := env.jobs.Get(resp["id"].(string))
	assert.NoError(t, err)
	assert.Equal(t, 64, job.Config.BatchSize)
	assert.Equal(t, 0.01, job.Config.LearningRate)
	assert.False(t, job.Config.EarlyStopping)
	assert.Equal(t, 0.3, job.Config.ValidationSplit)
	assert.Equal(t, float64(200), job.Config.Hyperparameters["n_estimators"])
	assert.Equal(t, []string{"experiment", "v2"}, job.Config.Tags)
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		mutate func(map[string]interface{})
		detail string
	}{
		{"missing name", func(m map[string]interface{}) { delete(m, "name") }, "name, dataset_id and algorithm are required"},
		{"missing dataset", func(m map[string]interface{}) { delete(m, "dataset_id") }, "name, dataset_id and algorithm are required"},
		{"missing algorithm", func(m map[string]interface{}) { delete(m, "algorithm") }, "name, dataset_id and algorithm are required"},
		{"bad model type", func(m map[string]interface{}) { m["model_type"] = "llm" }, "Invalid model_type: llm"},
		{"bad framework", func(m map[string]interface{}) { m["framework"] = "keras" }, "Invalid framework: keras"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validCreateBody()
			tc.mutate(body)
			rec := env.do(http.MethodPost, "/v1/training/jobs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.detail, decodeMap(t, rec)["detail"])
		})
	}

	// None of the rejected requests created a job
	assert.Empty(t, env.jobs.List(registry.JobFilter{}))
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doRaw(http.MethodPost, "/v1/training/jobs", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeMap(t, rec)["detail"])
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/training/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Training job not found", decodeMap(t, rec)["detail"])
}

func TestGetJobReturnsStoredJob(t *testing.T) {
	env := newTestEnv(t)

	job := &models.TrainingJob{
		ID:          "job-1",
		Name:        "clv",
		ModelType:   models.ModelTypeRegression,
		Framework:   models.FrameworkXGBoost,
		Status:      models.StatusQueued,
		TotalEpochs: 10,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   "alice",
	}
	assert.NoError(t, env.jobs.Put(job))

	rec := env.do(http.MethodGet, "/v1/training/jobs/job-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, "job-1", body["id"])
	assert.Equal(t, "clv", body["name"])
	assert.Equal(t, "regression", body["model_type"])
	assert.Equal(t, "xgboost", body["framework"])
	assert.Equal(t, "alice", body["created_by"])
	// nil maps render as empty objects on the wire
	assert.Equal(t, map[string]interface{}{}, body["metrics"])
	assert.Equal(t, []interface{}{}, body["model_artifacts"])
}

func TestListJobsFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)

	put := func(id string, mt models.ModelType, fw models.Framework) {
		t.Helper()
		assert.NoError(t, env.jobs.Put(&models.TrainingJob{
			ID: id, Name: id, ModelType: mt, Framework: fw,
			Status: models.StatusQueued, TotalEpochs: 5, CreatedAt: time.Now().UTC(),
		}))
	}
	put("a", models.ModelTypeClassification, models.FrameworkSklearn)
	put("b", models.ModelTypeRegression, models.FrameworkXGBoost)
	put("c", models.ModelTypeClassification, models.FrameworkTensorFlow)

	_, err := env.jobs.MarkRunning("b")
	assert.NoError(t, err)
	_, err = env.jobs.MarkRunning("c")
	assert.NoError(t, err)
	_, err = env.jobs.Complete("c", nil)
	assert.NoError(t, err)

	// Unfiltered, insertion order
	items := decodeList(t, env.do(http.MethodGet, "/v1/training/jobs", nil))
	assert.Len(t, items, 3)
	assert.Equal(t, "a", items[0]["id"])
	assert.Equal(t, "b", items[1]["id"])
	assert.Equal(t, "c", items[2]["id"])

	items = decodeList(t, env.do(http.MethodGet, "/v1/training/jobs?status=running", nil))
	assert.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])

	items = decodeList(t, env.do(http.MethodGet, "/v1/training/jobs?model_type=classification", nil))
	assert.Len(t, items, 2)
	assert.Equal(t, "a", items[0]["id"])
	assert.Equal(t, "c", items[1]["id"])

	items = decodeList(t, env.do(http.MethodGet, "/v1/training/jobs?framework=xgboost", nil))
	assert.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])

	items = decodeList(t, env.do(http.MethodGet, "/v1/training/jobs?skip=1&limit=1", nil))
	assert.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])
}

func TestListJobsNonPositiveLimitKeepsCap(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 105; i++ {
		assert.NoError(t, env.jobs.Put(&models.TrainingJob{
			ID: fmt.Sprintf("job-%03d", i), Name: "bulk", ModelType: models.ModelTypeClassification,
			Framework: models.FrameworkSklearn, Status: models.StatusQueued,
			TotalEpochs: 5, CreatedAt: time.Now().UTC(),
		}))
	}

	// The default page size caps the listing.
	items := decodeList(t, env.do(http.MethodGet, "/v1/training/jobs", nil))
	assert.Len(t, items, 100)

	for _, target := range []string{
		"/v1/training/jobs?limit=0",
		"/v1/training/jobs?limit=-1",
	} {
		items = decodeList(t, env.do(http.MethodGet, target, nil))
		assert.Lenf(t, items, 100, "target %s", target)
	}
}

func TestListJobsInvalidQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/v1/training/jobs?status=paused",
		"/v1/training/jobs?model_type=llm",
		"/v1/training/jobs?framework=keras",
		"/v1/training/jobs?skip=many",
		"/v1/training/jobs?limit=few",
	} {
		rec := env.do(http.MethodGet, target, nil)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv(t)

	created := decodeMap(t, env.do(http.MethodPost, "/v1/training/jobs", validCreateBody()))
	id := created["id"].(string)

	rec := env.do(http.MethodPost, "/v1/training/jobs/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Training job cancelled successfully", decodeMap(t, rec)["message"])

	got := decodeMap(t, env.do(http.MethodGet, "/v1/training/jobs/"+id, nil))
	assert.Equal(t, "cancelled", got["status"])
	assert.NotNil(t, got["completed_at"])

	// A second cancel conflicts with the terminal status
	rec = env.do(http.MethodPost, "/v1/training/jobs/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot cancel job in current status", decodeMap(t, rec)["detail"])

	rec = env.do(http.MethodPost, "/v1/training/jobs/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobEvents(t *testing.T) {
	env := newTestEnv(t)

	created := decodeMap(t, env.do(http.MethodPost, "/v1/training/jobs", validCreateBody()))
	id := created["id"].(string)
	env.do(http.MethodPost, "/v1/training/jobs/"+id+"/cancel", nil)

	rec := env.do(http.MethodGet, "/v1/training/jobs/"+id+"/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	items := decodeMap(t, rec)["items"].([]interface{})
	assert.GreaterOrEqual(t, len(items), 2)

	first := items[0].(map[string]interface{})
	assert.Equal(t, "job_created", first["reason"])
	assert.Equal(t, "queued", first["to_status"])
	assert.NotContains(t, first, "from_status")
	assert.NotEmpty(t, first["at"])

	last := items[len(items)-1].(map[string]interface{})
	assert.Equal(t, "user_cancelled", last["reason"])
	assert.Equal(t, "cancelled", last["to_status"])

	rec = env.do(http.MethodGet, "/v1/training/jobs/nope/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
