// Package server assembles the running process: the ServerContext is the
// composition root owning the single consent registry, backend client, and
// agent message router shared by every tool and command, plus the Kubernetes
// health endpoints and the dedicated Prometheus metrics server.
//
// There are no package-level singletons. Tools and commands receive the
// ServerContext and pull the collaborators they need from it, so sharing is
// explicit and testable.
package server
