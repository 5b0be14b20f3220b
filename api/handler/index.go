package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Turnstile Solver API</title>
</head>
<body>
    <h1>Turnstile Solver API</h1>
    <p>Send a GET request to <code>/turnstile</code> with the following query parameters:</p>
    <ul>
        <li><strong>url</strong>: the URL where Turnstile is to be validated</li>
        <li><strong>sitekey</strong>: the Turnstile site key</li>
    </ul>
    <p>The response contains a <code>task_id</code>; poll <code>/result?id=&lt;task_id&gt;</code> for the token.</p>
    <p>For a synchronous solve, POST JSON to <code>/api/v1/solve</code>.</p>
    <p>Example: <code>/turnstile?url=https://example.com&amp;sitekey=0x4AAAAAAA...</code></p>
</body>
</html>`

// Index returns a handler for GET / serving the API usage page.
func Index() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	}
}
