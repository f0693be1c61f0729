package sqlinline

const QSelectUserByID = `--sql d5fd7faa-8b56-4ca6-aca1-13db0039616d
select id, email, name, coalesce(locale, 'en'), role, balance, created_at, updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql a2592f0f-e2e5-43a9-8c8f-4a59e33941ea
select id, email, name, coalesce(locale, 'en'), role, balance, created_at, updated_at
from users
where lower(email) = lower($1::text)
limit 1;
`

const QSelectUserBalance = `--sql 91688f72-c168-4f2b-aa93-4c70d7d9edf0
select balance from users where id = $1::uuid limit 1;
`

// QDeductBalance decrements the balance only when the user can afford the
// cost. Matching zero rows means insufficient funds (or unknown user); the
// conditional update closes the read-then-write race between concurrent
// deductions. Returns balance before and after.
const QDeductBalance = `--sql 2f3cfa25-9079-4417-9952-3d1bbbf90593
update users
set balance = balance - $2::int, updated_at = now()
where id = $1::uuid and balance >= $2::int
returning balance + $2::int, balance;
`

// QAddBalance credits (or refunds) the user, clamping the result at zero so a
// negative adjustment can never drive the balance below zero. Returns balance
// before and after.
const QAddBalance = `--sql 63f0186e-5a0e-4d3e-847f-e538c739102d
with prev as (
    select id, balance from users where id = $1::uuid for update
)
update users
set balance = greatest(users.balance + $2::int, 0), updated_at = now()
from prev
where users.id = prev.id
returning prev.balance, users.balance;
`

// QSetBalance overwrites the balance, clamped at zero. Returns balance before
// and after.
const QSetBalance = `--sql b11c663d-0a1f-41a5-b693-0f454ec9327f
with prev as (
    select id, balance from users where id = $1::uuid for update
)
update users
set balance = greatest($2::int, 0), updated_at = now()
from prev
where users.id = prev.id
returning prev.balance, users.balance;
`
