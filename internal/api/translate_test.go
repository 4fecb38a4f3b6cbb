package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestTranslateNearbyStagesExecutableSQL(t *testing.T) {
	deps, _, _ := testDependencies()
	handler := NewHandler(testConfig(), deps)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/translate", map[string]any{
		"text": "查询表 poi 附近500米的要素，坐标 120.5，30.2",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("success = %v, error = %v", body["success"], body["error"])
	}
	if body["intent"] != "nearby" {
		t.Fatalf("intent = %v", body["intent"])
	}

	sql, _ := body["sql"].(string)
	for _, want := range []string{"120.5", "30.2", "500", "LIMIT"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("sql missing %q: %s", want, sql)
		}
	}

	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatal("expected a staged session id")
	}
	action, err := deps.Sessions.Get(sessionID)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", sessionID, err)
	}
	if action.Payload.SQL != sql {
		t.Fatalf("staged sql differs from preview")
	}
}

func TestTranslateMissReturnsGuidanceNotHTTPError(t *testing.T) {
	deps, _, _ := testDependencies()
	handler := NewHandler(testConfig(), deps)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/translate", map[string]any{
		"text": "tell me a joke about maps",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a classification miss", recorder.Code)
	}
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
	errMessage, _ := body["error"].(string)
	if !strings.Contains(errMessage, "nearby") {
		t.Fatalf("guidance should list supported queries, got %q", errMessage)
	}
	if deps.Sessions.Len() != 0 {
		t.Fatalf("miss must not stage a session, Len = %d", deps.Sessions.Len())
	}
}

func TestTranslateUnknownTableIsNotFound(t *testing.T) {
	deps, _, _ := testDependencies()
	handler := NewHandler(testConfig(), deps)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/translate", map[string]any{
		"text":  "count features in table ghosts",
		"table": "ghosts",
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
}

func TestTranslateWithoutTableAsksForOne(t *testing.T) {
	deps, _, _ := testDependencies()
	handler := NewHandler(testConfig(), deps)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/translate", map[string]any{
		"text": "附近500米有什么，坐标 120.5，30.2",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
	errMessage, _ := body["error"].(string)
	if !strings.Contains(errMessage, "table") {
		t.Fatalf("error should mention the missing table, got %q", errMessage)
	}
}

func TestTranslateTableFieldOverridesExtractedName(t *testing.T) {
	deps, _, _ := testDependencies()
	handler := NewHandler(testConfig(), deps)

	recorder, body := doJSON(t, handler, http.MethodPost, "/v1/translate", map[string]any{
		"text":  "表 ghosts 的要素数量",
		"table": "parcels",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("success = %v, error = %v", body["success"], body["error"])
	}
	if body["table"] != "parcels" {
		t.Fatalf("table = %v", body["table"])
	}
}
