package ai

// executionsSchemaDescription describes the ClickHouse analytics table for NL→SQL prompting.
//
// Keep it in sync with createExecutionsTable in internal/cache/clickhouse.go.
const executionsSchemaDescription = `
Table: swap_executions

Columns:
  - execution_id String         -- Unique id of one swap attempt
  - timestamp    DateTime64(3)  -- When the attempt finished (UTC)
  - wallet       String         -- Server wallet address that executed the swap
  - user_id      String         -- Requesting user id (may be empty)
  - pair         String         -- Trading pair, e.g. "WETH/USDC"
  - sell_token   String         -- Symbol of token sold
  - buy_token    String         -- Symbol of token bought
  - sell_amount  String         -- Human decimal amount sold, e.g. "0.1"
  - buy_amount   String         -- Human decimal amount bought (quoted)
  - outcome      String         -- confirmed | reverted | failed
  - stage        String         -- Last stage reached: quoting, allowance_check, permit, submitting, confirming, done
  - error_code   String         -- Error code for failed attempts, e.g. quote_unavailable
  - tx_hash      String         -- Swap transaction hash, empty if never broadcast
  - attempts     UInt8          -- Broadcast attempts used
  - duration_ms  Int64          -- Wall time of the attempt

Notes:
  - Amounts are strings; use toFloat64OrZero(sell_amount) for arithmetic.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
  - Success rate is countIf(outcome = 'confirmed') / count().
`
