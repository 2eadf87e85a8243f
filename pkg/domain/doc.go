/*
Package domain contains the core domain models for the USSD flow engine.

It defines the fundamental entities of the dialog state machine: Flows
(authored node/edge graphs), Nodes with their kind-specific payloads, and
Sessions (one handset dialog in flight). This package is kept pure and free
of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Flow: An immutable-per-version directed graph of dialog screens.
  - Node: One screen or routing point in the graph (menu, input, response,
    conditional, end).
  - Edge: A traversal rule between two nodes, optionally bound to a menu key.
  - Session: The runtime snapshot of a dialog (current node, variables,
    input audit log, lifecycle timestamps).
*/
package domain
