package sdk

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
)

func (sdk *contestSDK) judgeHeaders() map[string]string {
	return map[string]string{"Authorization": "Basic " + sdk.judgeAuth}
}

func (sdk *contestSDK) GetWork() (*grader.Work, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.judgeURL+"/get-work", nil, sdk.judgeHeaders(), http.StatusOK)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var work *grader.Work
	if err := json.Unmarshal(body, &work); err != nil {
		return nil, err
	}

	return work, nil
}

func (sdk *contestSDK) ReturnWork() error {
	_, err := sdk.processRequest(http.MethodPost, sdk.judgeURL+"/return-work", nil, sdk.judgeHeaders(), http.StatusOK)

	return err
}

func (sdk *contestSDK) FinishWork(scores []contest.Score) error {
	data, err := json.Marshal(struct {
		Scores []contest.Score `json:"scores"`
	}{Scores: scores})
	if err != nil {
		return err
	}

	_, err = sdk.processRequest(http.MethodPost, sdk.judgeURL+"/finish-work", data, sdk.judgeHeaders(), http.StatusOK)

	return err
}
