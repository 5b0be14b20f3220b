package solver

import (
	"fmt"
	"html"
	"strings"
)

// documentTemplate is the synthetic page served in place of the target URL.
// It hosts nothing but the Turnstile script and the widget container, so the
// widget sees the target origin while the page stays fully controlled.
const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Turnstile Solver</title>
    <script src="https://challenges.cloudflare.com/turnstile/v0/api.js" async></script>
</head>
<body>
    <!-- widget -->
</body>
</html>`

const widgetPlaceholder = "<!-- widget -->"

// widgetDocument renders the synthetic document with the widget container
// configured for the given site key and optional action/cdata parameters.
func widgetDocument(siteKey, action, cdata string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="cf-turnstile" data-sitekey="%s"`, html.EscapeString(siteKey))
	if action != "" {
		fmt.Fprintf(&b, ` data-action="%s"`, html.EscapeString(action))
	}
	if cdata != "" {
		fmt.Fprintf(&b, ` data-cdata="%s"`, html.EscapeString(cdata))
	}
	b.WriteString(`></div>`)
	return strings.Replace(documentTemplate, widgetPlaceholder, b.String(), 1)
}

// normalizeURL appends a trailing slash so the hijacked URL matches what the
// browser actually requests.
func normalizeURL(url string) string {
	if strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}
