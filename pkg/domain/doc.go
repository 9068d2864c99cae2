/*
Package domain contains the core models of the canvas builder dialogue.

It defines what a user instruction resolves to and how a single turn is reported
back to the host. The package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - Classification: the structured interpretation of a message (category, confidence, entities).
  - CanvasContext: a read-only snapshot of the canvas at classification time.
  - ClarificationRequest / ClarificationResponse: the question posed to the user and their reply.
  - SessionState: the conversation carried between turns. Updates return new values.
  - StreamEvent: the closed set of events a turn emits, always terminated by Complete.
*/
package domain
