package sqlinline

const QInsertBalanceTransaction = `--sql 15d3d9f6-c2fd-4a10-86dc-95285dbd790c
insert into balance_transactions
    (id, user_id, kind, category, operation_type, amount, balance_before, balance_after, metadata, created_at)
values
    (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::text, $5::int, $6::int, $7::int, coalesce($8::jsonb, '{}'::jsonb), now());
`

const QSelectBalanceTransactions = `--sql a447b8e8-aa77-40c0-9131-42d395048c75
select id, user_id, kind, category, operation_type, amount, balance_before, balance_after, metadata, created_at
from balance_transactions
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
