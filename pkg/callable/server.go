package callable

import (
	"bytes"
	"io"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type requestEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Bind decodes the "data" member of a callable request into dst. An empty body or
// a missing/null "data" leaves dst untouched.
func Bind(c *gin.Context, dst interface{}) error {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return Errorf(CodeInvalidArgument, "Unable to read request body: %v", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env requestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Errorf(CodeInvalidArgument, "Request body is not valid JSON: %v", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return Errorf(CodeInvalidArgument, "Invalid request data: %v", err)
	}
	return nil
}

// Respond writes a successful callable response.
func Respond(c *gin.Context, result interface{}) {
	c.JSON(200, gin.H{"result": result})
}

// Fail writes err as a callable error. Errors that are not *Error are reported as internal.
func Fail(c *gin.Context, err error) {
	cerr, ok := AsError(err)
	if !ok {
		log.Printf("[Callable] Unexpected error on %s: %v", c.FullPath(), err)
		cerr = NewError(CodeInternal, err.Error())
	}
	c.AbortWithStatusJSON(cerr.Code.HTTPStatus(), gin.H{
		"error": errorBody{Status: cerr.Code.Status(), Message: cerr.Message},
	})
}
