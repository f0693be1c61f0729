package sqlinline

const QSelectIntegrationToken = `--sql d7031eed-0760-48fd-b8cd-04d57a189e1a
select token
from integration_tokens
where provider = $1::text
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql 23cb1da1-b366-429a-9db2-a3d8f4e5de9f
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
