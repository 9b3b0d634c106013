/*
Package update implements the push-update handshake between agents.

A producer agent that mutates its own state builds an Event, and a Publisher delivers
it to the consumer's "<agent>/message/stream" method through the ordinary dispatch
path. Delivery is detached from the mutation: Publish returns immediately, the
mutation is never rolled back, and failures are only logged. Each attempt is bounded
by a timeout. By default there is a single attempt (at-most-once); WithRetries enables
a bounded retry with exponential backoff for transport failures only. An Ack is
terminal: a NACK (processed false) is never retried.

On the consumer side a Consumer is a single registry handler over a closed set of
event types registered with On. It never returns an error envelope. Every outcome
is an Ack with status "received":

  - processed true when the event was applied;
  - processed false with a reason when the subject does not exist;
  - processed false with "event not recognized" for unknown types or missing fields.

There is no deduplication by eventId. Redelivering an event applies it again, and
the last write wins.
*/
package update
