/*
Package schema loads and validates flow definitions.

Flow documents arrive as loosely-typed JSON (editor output) or YAML (flow
files). Decoding maps them onto the closed node-kind set in pkg/domain; any
unrecognized kind or malformed payload is a load-time error rather than
something the engine discovers mid-dialog. Validate then checks the graph
invariants the engine relies on: a single start node with one edge, edge
targets that exist, one unconditional edge per input/response node, and a
wired edge for every menu option.
*/
package schema
