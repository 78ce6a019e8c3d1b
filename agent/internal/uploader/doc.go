// Package uploader performs a single authenticated PUT of an inventory
// snapshot to the server.
//
// Target.EndpointURL builds {baseUrl}/api/v1/agents/{agentId}/system-info
// from the configured template, trimming trailing slashes from the base URL
// and path-escaping the agent ID.
//
// Client.Send makes exactly one attempt. A 2xx response is success; any
// other status or a transport failure is returned as *DeliveryError.
// Retrying is the shipper's job.
//
// The agent key always travels in the configured header, injected by
// credentialTransport (also used by the key validator in package identity).
// With SendKeyInBody the payload is re-encoded as a JSON object with an
// agentKey member added.
package uploader
