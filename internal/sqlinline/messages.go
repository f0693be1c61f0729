package sqlinline

// QEnsureChat creates the parent chat row when the save-message path sees a
// message for an unknown chat. The title is generated by the caller.
const QEnsureChat = `--sql e2b36d2c-cf19-435a-9982-8e0a3e1ae0b5
insert into chats (id, user_id, title, created_at)
values ($1::uuid, $2::uuid, $3::text, now())
on conflict (id) do nothing;
`

// QUpsertMessage persists a chat message by id: update when it exists, insert
// otherwise. Parts and attachments are stored as JSONB.
const QUpsertMessage = `--sql ac7d1531-4c69-4926-ae0e-1210fad80ec8
insert into chat_messages (id, chat_id, role, parts, attachments, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::jsonb, coalesce($5::jsonb, '[]'::jsonb), $6::timestamptz)
on conflict (id) do update set
    parts = excluded.parts,
    attachments = excluded.attachments;
`

const QSelectChatMessages = `--sql f2b0fffd-eeef-452e-a66e-304c748bb9ae
select id, chat_id, role, parts, attachments, created_at
from chat_messages
where chat_id = $1::uuid
order by created_at asc;
`

const QSelectMessageByID = `--sql ef720cfb-e89c-4ad0-8661-45adb68ef381
select id, chat_id, role, parts, attachments, created_at
from chat_messages
where id = $1::uuid
limit 1;
`

const QSelectChatByID = `--sql f8948f42-70af-442e-9491-128f6fb9d27c
select id, user_id, title, created_at
from chats
where id = $1::uuid
limit 1;
`
