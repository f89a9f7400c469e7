// Package http implements the HTTP handlers for the wave analysis service.
// It is a thin layer between transport and the service packages: handlers
// parse and validate requests, call a service, and format the response.
//
// # Handler Structure
//
// Each handler follows the same pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    // 1. Parse the request
//	    var req services.SomeRequest
//	    if err := render.DecodeJSON(r.Body, &req); err != nil {
//	        h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
//	        return
//	    }
//
//	    // 2. Call the service layer
//	    result, err := h.service.DoSomething(r.Context(), req)
//	    if err != nil {
//	        h.errorHandler.HandleError(w, r, err)
//	        return
//	    }
//
//	    // 3. Send the response
//	    render.JSON(w, r, result)
//	}
//
// # Error Handling
//
// Every error path goes through errors.ErrorHandler, which renders RFC
// 7807 problem documents:
//
//	{
//	    "type": "/problems/wave-config",
//	    "title": "Invalid Wave Configuration",
//	    "status": 400,
//	    "detail": "wave config \"wave1-wave3\" not recognized",
//	    "instance": "/api/analyze"
//	}
//
// Typed domain errors (waves.ConfigError, dataset.ColumnNotFoundError,
// pipeline.RunError and friends) are mapped centrally; handlers only map
// the service-level sentinels that need a specific status code.
//
// # WebSocket Support
//
// GET /ws upgrades with gorilla/websocket and hands the connection to the
// hub, which pushes pipeline run snapshots to all connected clients.
package http
