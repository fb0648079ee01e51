// Middleware pipeline: built-ins, global middleware, authentication,
// route middleware, handler, endware, in that order.
package engine

import (
	"fmt"
	"time"
)

// RunPipeline drives one HTTP Request Context through the full pipeline.
// Each stage returns a boolean: true continues, false short-circuits with
// the response already set. A panic surfacing from handler code is
// treated as a handler exception: logged, pipeline aborted, status 500
// with a redacted description.
func RunPipeline(rc *RequestContext) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rc.Server.Logger.Errorf("handler panic on %s: %v", rc.ID, r)
			rc.Response = NewResponseWriter()
			rc.Response.WriteText(500, "500 Internal Server Error")
		}
		runEndware(rc)
		if rc.Response != nil {
			observeRequest(rc, start, rc.Response.Status)
		}
	}()

	var span = startRequestSpan(rc)
	defer span.End()

	route, cont, err := runBuiltins(rc)
	if !cont {
		if err != nil {
			writeHandlerError(rc, err)
		}
		return
	}

	for _, mw := range rc.Server.globalMiddleware {
		cont, err := mw(rc)
		if err != nil {
			writeHandlerError(rc, err)
			return
		}
		if !cont {
			return
		}
	}

	attachSession(rc)
	if cont := runAuth(rc, route); !cont {
		return
	}

	for _, mw := range route.Middleware {
		cont, err := mw(rc)
		if err != nil {
			writeHandlerError(rc, err)
			return
		}
		if !cont {
			return
		}
	}

	if route.Static != nil {
		if err := serveStatic(rc, route); err != nil {
			writeHandlerError(rc, err)
		}
		return
	}

	if route.Handler == nil {
		rc.Response = NewResponseWriter()
		rc.Response.WriteText(500, "500 Internal Server Error")
		return
	}
	if err := route.Handler(rc); err != nil {
		writeHandlerError(rc, err)
	}
}

func endpointNameOf(rc *RequestContext) string {
	if rc.Endpoint == nil {
		return ""
	}
	return rc.Endpoint.Name
}

// runBuiltins covers the built-in pipeline stage that runs first, ahead
// of global middleware: body-parse/cookie-parse validation and
// route-validate. Body-parse and cookie-parse already ran during HTTP
// parsing (http1.go); route-validate matches the route here so a request
// with no matching route 404s before any global middleware runs.
func runBuiltins(rc *RequestContext) (route *Route, cont bool, err error) {
	if rc.HTTP == nil {
		return nil, false, NewError(KindProtocolParse, "pipeline.builtins", fmt.Errorf("no parsed request"))
	}

	route, params, matched := rc.Server.router.Match(HTTPMethod(rc.HTTP.Method), rc.HTTP.Path, endpointNameOf(rc))
	if !matched {
		rc.Response = NewResponseWriter()
		rc.Response.WriteText(404, "404 Not Found")
		return nil, false, nil
	}
	rc.HTTP.Params = params

	return route, true, nil
}

func writeHandlerError(rc *RequestContext, err error) {
	rc.Server.Logger.Errorf("request %s: %s", rc.ID, err.Error())
	rc.Response = NewResponseWriter()
	rc.Response.WriteText(500, "500 Internal Server Error") // description redacted by default
}

// runEndware runs globally-registered endware in registration order, then
// the Request-Context-local queue.
func runEndware(rc *RequestContext) {
	for _, ew := range rc.Server.globalEndware {
		ew(rc)
	}
	for _, ew := range rc.onEnd {
		ew(rc)
	}
}
