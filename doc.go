/*
Package kafkaavro implements a Kafka client helper for exchanging strongly
typed, schema validated records without hand-writing wire framing or schema
lookups.

It covers the Confluent style wire codec (magic byte plus schema id prefix
around an AVRO encoded body), a process-wide schema cache filled lazily from
the schema registry, and a consume-dispatch-produce loop that routes records
to typed handlers, republishes their results and commits offsets only after
successful processing, retrying by rewinding to the last committed offset on
failure.

# Features
  - Topics derived from event record names (UserFeedback -> user-feedback)
  - At-least-once processing, commit after downstream publish
  - Shared schema cache and producer session across consumer loops

Schema registry API : https://docs.confluent.io/platform/current/schema-registry/develop/api.html

Avro: http://avro.apache.org/docs/current/

Protobuf: https://protobuf.dev/programming-guides/encoding/
*/

package kafkaavro
