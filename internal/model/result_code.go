// internal/model/result_code.go
package model

import (
	"encoding/json"
	"fmt"
)

// ResultCode reports the outcome of a list operation.
type ResultCode int

const (
	Success       ResultCode = 1
	Failure       ResultCode = 2
	NotFound      ResultCode = 3
	NotSubscribed ResultCode = 4
	Queued        ResultCode = 5
	Invalid       ResultCode = 6
)

var resultCodeNames = map[ResultCode]string{
	Success:       "SUCCESS",
	Failure:       "FAILURE",
	NotFound:      "NOT_FOUND",
	NotSubscribed: "NOT_SUBSCRIBED",
	Queued:        "QUEUED",
	Invalid:       "INVALID",
}

// ResultCodes lists every code in declaration order.
var ResultCodes = []ResultCode{Success, Failure, NotFound, NotSubscribed, Queued, Invalid}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

func (c ResultCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// severity ranks codes for batch aggregation, worst first.
var severity = map[ResultCode]int{
	Failure:       6,
	Invalid:       5,
	NotFound:      4,
	NotSubscribed: 3,
	Queued:        2,
	Success:       1,
}

// Worst folds batch results into one code.
// Precedence: FAILURE > INVALID > NOT_FOUND > NOT_SUBSCRIBED > QUEUED > SUCCESS.
// An empty input yields SUCCESS.
func Worst(codes ...ResultCode) ResultCode {
	worst := Success
	for _, c := range codes {
		if severity[c] > severity[worst] {
			worst = c
		}
	}
	return worst
}
