/*
Package ports defines the driven ports (interfaces) of the canvas builder core.

These interfaces decouple the dialogue logic from external implementations, allowing
the core to work with various completion providers, resolvers and storage backends.

# Key Interfaces

  - CompletionProvider: Turns a prompt into text (e.g., Gemini or a scripted provider).
  - EntityResolver: Resolves node and scope references against the canvas and catalog.
  - OperationTranslator: Converts a resolved Classification into canvas patches.
  - SessionStore: Persists and loads SessionState between turns.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
